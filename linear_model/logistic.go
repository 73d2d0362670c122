// Package linear_model implements logistic regression fitted by iteratively
// reweighted least squares, plus bidirectional stepwise feature selection by
// Akaike Information Criterion.
package linear_model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/histoml/histoml/core/model"
	"github.com/histoml/histoml/pkg/errors"
)

// LogisticRegression fits a binary linear model by maximum likelihood using
// IRLS (Newton-Raphson on the log-likelihood). Probability 0.5 and above
// maps to class 1, below to class 0, matching the class ordering used
// throughout the pipeline.
type LogisticRegression struct {
	state *model.StateManager

	// Hyperparameters.
	MaxIter      int
	Tol          float64
	FitIntercept bool

	// Features optionally restricts the model to a column subset of the
	// design matrix; nil means all columns. Stepwise selection produces
	// models with this set.
	Features []int

	// Fitted parameters.
	coef      []float64 // one weight per active feature
	intercept float64
	deviance  float64
	nIter     int
}

// LogisticRegressionOption is a functional option for LogisticRegression.
type LogisticRegressionOption func(*LogisticRegression)

// WithMaxIter sets the IRLS iteration cap.
func WithMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.MaxIter = maxIter }
}

// WithTol sets the convergence tolerance on the deviance change.
func WithTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.Tol = tol }
}

// WithFeatures restricts the model to the given design-matrix columns.
func WithFeatures(features []int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.Features = append([]int(nil), features...)
	}
}

// NewLogisticRegression creates a logistic regression model with the default
// iteration cap of 25 and tolerance 1e-8, mirroring the usual IRLS control.
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		MaxIter:      25,
		Tol:          1e-8,
		FitIntercept: true,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// Name identifies the model family and the size of its feature set.
func (lr *LogisticRegression) Name() string {
	if lr.Features != nil {
		return fmt.Sprintf("LogisticRegression(features=%d)", len(lr.Features))
	}
	return "LogisticRegression"
}

// Fit runs IRLS until the deviance change drops below Tol. It fails with a
// ConvergenceError when MaxIter is reached first, and with a DataError when
// the weighted normal equations become singular (separable data or a
// degenerate column).
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	const op = "LogisticRegression.Fit"

	n, pFull := X.Dims()
	yr, yc := y.Dims()
	if n == 0 || pFull == 0 {
		return errors.NewDataError(op, "empty data")
	}
	if yr != n {
		return errors.NewDimensionError(op, n, yr, 0)
	}
	if yc != 1 {
		return errors.NewValueError(op, "y must be a column vector")
	}

	active := lr.activeFeatures(pFull)
	p := len(active)
	nParams := p
	if lr.FitIntercept {
		nParams++
	}

	// Design matrix with an intercept column when requested.
	design := mat.NewDense(n, nParams, nil)
	for i := 0; i < n; i++ {
		col := 0
		if lr.FitIntercept {
			design.Set(i, 0, 1)
			col = 1
		}
		for _, j := range active {
			design.Set(i, col, X.At(i, j))
			col++
		}
	}

	target := make([]float64, n)
	for i := 0; i < n; i++ {
		target[i] = y.At(i, 0)
	}

	beta := make([]float64, nParams)
	prevDeviance := math.Inf(1)
	converged := false

	for iter := 0; iter < lr.MaxIter; iter++ {
		// Linear predictor and fitted probabilities.
		eta := make([]float64, n)
		mu := make([]float64, n)
		w := make([]float64, n)
		for i := 0; i < n; i++ {
			z := 0.0
			for j := 0; j < nParams; j++ {
				z += design.At(i, j) * beta[j]
			}
			eta[i] = z
			mu[i] = sigmoid(z)
			w[i] = math.Max(mu[i]*(1-mu[i]), 1e-10)
		}

		// Working response: eta + (y - mu) / w.
		zResp := make([]float64, n)
		for i := 0; i < n; i++ {
			zResp[i] = eta[i] + (target[i]-mu[i])/w[i]
		}

		// Weighted least squares: (X' W X) beta = X' W z.
		xtwx := mat.NewDense(nParams, nParams, nil)
		xtwz := mat.NewVecDense(nParams, nil)
		for i := 0; i < n; i++ {
			for a := 0; a < nParams; a++ {
				xa := design.At(i, a) * w[i]
				xtwz.SetVec(a, xtwz.AtVec(a)+xa*zResp[i])
				for b := 0; b < nParams; b++ {
					xtwx.Set(a, b, xtwx.At(a, b)+xa*design.At(i, b))
				}
			}
		}

		var sol mat.VecDense
		if err := sol.SolveVec(xtwx, xtwz); err != nil {
			return errors.NewDataError(op, "weighted normal equations are singular")
		}
		for j := 0; j < nParams; j++ {
			beta[j] = sol.AtVec(j)
		}

		dev := binomialDeviance(target, design, beta)
		lr.nIter = iter + 1
		if math.Abs(prevDeviance-dev) < lr.Tol*(math.Abs(dev)+0.1) {
			prevDeviance = dev
			converged = true
			break
		}
		prevDeviance = dev
	}

	if !converged {
		return errors.NewConvergenceError("IRLS", lr.MaxIter,
			"deviance did not stabilize")
	}

	lr.deviance = prevDeviance
	if lr.FitIntercept {
		lr.intercept = beta[0]
		lr.coef = append([]float64(nil), beta[1:]...)
	} else {
		lr.intercept = 0
		lr.coef = append([]float64(nil), beta...)
	}

	lr.state.SetDimensions(pFull, n)
	lr.state.SetFitted()
	return nil
}

// Predict maps fitted probabilities through the 0.5 threshold.
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, _ := proba.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		if proba.At(i, 1) >= 0.5 {
			out.Set(i, 0, 1)
		}
	}
	return out, nil
}

// PredictProba returns the fitted class probabilities via the logistic link.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	const op = "LogisticRegression.PredictProba"

	if !lr.state.IsFitted() {
		return nil, errors.NewNotFittedError("LogisticRegression", "PredictProba")
	}

	n, pFull := X.Dims()
	expected, _ := lr.state.GetDimensions()
	if pFull != expected {
		return nil, errors.NewDimensionError(op, expected, pFull, 1)
	}

	active := lr.activeFeatures(pFull)
	out := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		z := lr.intercept
		for c, j := range active {
			z += X.At(i, j) * lr.coef[c]
		}
		p1 := sigmoid(z)
		out.Set(i, 0, 1-p1)
		out.Set(i, 1, p1)
	}
	return out, nil
}

// Score returns the mean accuracy on the given test data and labels.
func (lr *LogisticRegression) Score(X, y mat.Matrix) (float64, error) {
	pred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	n, _ := y.Dims()
	correct := 0
	for i := 0; i < n; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// AIC returns the Akaike Information Criterion of the fitted model:
// deviance + 2 * number of parameters.
func (lr *LogisticRegression) AIC() (float64, error) {
	if !lr.state.IsFitted() {
		return 0, errors.NewNotFittedError("LogisticRegression", "AIC")
	}
	nParams := len(lr.coef)
	if lr.FitIntercept {
		nParams++
	}
	return lr.deviance + 2*float64(nParams), nil
}

// Coef returns the fitted weights, one per active feature.
func (lr *LogisticRegression) Coef() []float64 {
	return append([]float64(nil), lr.coef...)
}

// Intercept returns the fitted intercept.
func (lr *LogisticRegression) Intercept() float64 { return lr.intercept }

// NIter returns the number of IRLS iterations performed.
func (lr *LogisticRegression) NIter() int { return lr.nIter }

// GetParams returns the model hyperparameters.
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"max_iter":      lr.MaxIter,
		"tol":           lr.Tol,
		"fit_intercept": lr.FitIntercept,
		"features":      lr.Features,
	}
}

func (lr *LogisticRegression) activeFeatures(pFull int) []int {
	if lr.Features != nil {
		return lr.Features
	}
	all := make([]int, pFull)
	for j := range all {
		all[j] = j
	}
	return all
}

// binomialDeviance is -2 times the binomial log-likelihood.
func binomialDeviance(y []float64, design *mat.Dense, beta []float64) float64 {
	n, p := design.Dims()
	dev := 0.0
	for i := 0; i < n; i++ {
		z := 0.0
		for j := 0; j < p; j++ {
			z += design.At(i, j) * beta[j]
		}
		mu := sigmoid(z)
		mu = math.Min(math.Max(mu, 1e-12), 1-1e-12)
		dev += y[i]*math.Log(mu) + (1-y[i])*math.Log(1-mu)
	}
	return -2 * dev
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
