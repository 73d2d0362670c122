// Package svm implements a soft-margin support vector classifier with
// linear and radial-basis-function kernels, trained by sequential minimal
// optimization on the dual problem.
package svm

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/histoml/histoml/core/model"
	"github.com/histoml/histoml/pkg/errors"
)

// Kernel names accepted by SVC.
const (
	KernelLinear = "linear"
	KernelRBF    = "rbf"
)

// SVC is a binary soft-margin SVM. The decision boundary maximizes the
// margin subject to the cost parameter C; the dual is solved with simplified
// SMO, which is deterministic for a fixed Seed.
type SVC struct {
	state *model.StateManager

	// Hyperparameters.
	Kernel    string  // "linear" or "rbf"
	C         float64 // soft-margin cost
	Gamma     float64 // RBF bandwidth; ignored for the linear kernel
	Tol       float64 // KKT violation tolerance
	MaxPasses int     // consecutive non-updating passes before stopping
	MaxIter   int     // hard cap on full passes, ConvergenceError beyond
	Seed      int64

	// Fitted state: support vectors and their dual coefficients.
	svX     [][]float64
	svAlpha []float64 // alpha_i * y_i, y in {-1, +1}
	b       float64
}

// SVCOption is a functional option for SVC.
type SVCOption func(*SVC)

// WithKernel sets the kernel ("linear" or "rbf").
func WithKernel(kernel string) SVCOption {
	return func(s *SVC) { s.Kernel = kernel }
}

// WithC sets the soft-margin cost.
func WithC(c float64) SVCOption {
	return func(s *SVC) { s.C = c }
}

// WithGamma sets the RBF kernel bandwidth.
func WithGamma(gamma float64) SVCOption {
	return func(s *SVC) { s.Gamma = gamma }
}

// WithSeed sets the seed for SMO's working-pair selection.
func WithSeed(seed int64) SVCOption {
	return func(s *SVC) { s.Seed = seed }
}

// WithMaxIter sets the hard cap on optimization passes.
func WithMaxIter(maxIter int) SVCOption {
	return func(s *SVC) { s.MaxIter = maxIter }
}

// NewSVC creates an SVC with a linear kernel, C=1, gamma=0.1, and the usual
// SMO control parameters.
func NewSVC(opts ...SVCOption) *SVC {
	s := &SVC{
		state:     model.NewStateManager(),
		Kernel:    KernelLinear,
		C:         1.0,
		Gamma:     0.1,
		Tol:       1e-3,
		MaxPasses: 5,
		MaxIter:   1000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name identifies the model family and its hyperparameters.
func (s *SVC) Name() string {
	if s.Kernel == KernelRBF {
		return fmt.Sprintf("SVC(kernel=rbf, C=%g, gamma=%g)", s.C, s.Gamma)
	}
	return fmt.Sprintf("SVC(kernel=linear, C=%g)", s.C)
}

// Fit solves the dual problem with simplified SMO. Labels arrive as 0/1
// class indices and are mapped to -1/+1 internally. It fails with a
// ConvergenceError when MaxIter full passes are exhausted before the KKT
// conditions hold within Tol.
func (s *SVC) Fit(X, y mat.Matrix) error {
	const op = "SVC.Fit"

	if s.Kernel != KernelLinear && s.Kernel != KernelRBF {
		return errors.NewValueError(op, "unknown kernel "+s.Kernel)
	}

	n, p := X.Dims()
	yr, yc := y.Dims()
	if n == 0 || p == 0 {
		return errors.NewDataError(op, "empty data")
	}
	if yr != n {
		return errors.NewDimensionError(op, n, yr, 0)
	}
	if yc != 1 {
		return errors.NewValueError(op, "y must be a column vector")
	}

	rows := make([][]float64, n)
	labels := make([]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, p)
		for j := 0; j < p; j++ {
			row[j] = X.At(i, j)
		}
		rows[i] = row
		if y.At(i, 0) == 1 {
			labels[i] = 1
		} else {
			labels[i] = -1
		}
	}

	alpha := make([]float64, n)
	b := 0.0
	rng := rand.New(rand.NewPCG(uint64(s.Seed), uint64(s.Seed)+1))

	// Kernel matrix; training sets here are small enough to precompute.
	K := make([][]float64, n)
	for i := 0; i < n; i++ {
		K[i] = make([]float64, n)
		for j := 0; j <= i; j++ {
			k := s.kernel(rows[i], rows[j])
			K[i][j] = k
			K[j][i] = k
		}
	}

	f := func(i int) float64 {
		sum := b
		for j := 0; j < n; j++ {
			if alpha[j] != 0 {
				sum += alpha[j] * labels[j] * K[j][i]
			}
		}
		return sum
	}

	passes := 0
	iter := 0
	for passes < s.MaxPasses {
		if iter >= s.MaxIter {
			return errors.NewConvergenceError("SMO", s.MaxIter,
				fmt.Sprintf("KKT conditions not met within tol=%g", s.Tol))
		}
		iter++

		changed := 0
		for i := 0; i < n; i++ {
			ei := f(i) - labels[i]
			if !((labels[i]*ei < -s.Tol && alpha[i] < s.C) || (labels[i]*ei > s.Tol && alpha[i] > 0)) {
				continue
			}

			j := rng.IntN(n - 1)
			if j >= i {
				j++
			}
			ej := f(j) - labels[j]

			ai, aj := alpha[i], alpha[j]
			var lo, hi float64
			if labels[i] != labels[j] {
				lo = math.Max(0, aj-ai)
				hi = math.Min(s.C, s.C+aj-ai)
			} else {
				lo = math.Max(0, ai+aj-s.C)
				hi = math.Min(s.C, ai+aj)
			}
			if lo == hi {
				continue
			}

			eta := 2*K[i][j] - K[i][i] - K[j][j]
			if eta >= 0 {
				continue
			}

			alpha[j] = aj - labels[j]*(ei-ej)/eta
			alpha[j] = math.Min(math.Max(alpha[j], lo), hi)
			if math.Abs(alpha[j]-aj) < 1e-5 {
				continue
			}
			alpha[i] = ai + labels[i]*labels[j]*(aj-alpha[j])

			b1 := b - ei - labels[i]*(alpha[i]-ai)*K[i][i] - labels[j]*(alpha[j]-aj)*K[i][j]
			b2 := b - ej - labels[i]*(alpha[i]-ai)*K[i][j] - labels[j]*(alpha[j]-aj)*K[j][j]
			switch {
			case alpha[i] > 0 && alpha[i] < s.C:
				b = b1
			case alpha[j] > 0 && alpha[j] < s.C:
				b = b2
			default:
				b = (b1 + b2) / 2
			}
			changed++
		}

		if changed == 0 {
			passes++
		} else {
			passes = 0
		}
	}

	// Keep only the support vectors.
	s.svX = s.svX[:0]
	s.svAlpha = s.svAlpha[:0]
	for i := 0; i < n; i++ {
		if alpha[i] > 1e-8 {
			s.svX = append(s.svX, rows[i])
			s.svAlpha = append(s.svAlpha, alpha[i]*labels[i])
		}
	}
	s.b = b

	s.state.SetDimensions(p, n)
	s.state.SetFitted()
	return nil
}

// Predict classifies by the sign of the decision function: non-negative
// maps to class 1.
func (s *SVC) Predict(X mat.Matrix) (mat.Matrix, error) {
	scores, err := s.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	n := len(scores)
	out := mat.NewDense(n, 1, nil)
	for i, sc := range scores {
		if sc >= 0 {
			out.Set(i, 0, 1)
		}
	}
	return out, nil
}

// DecisionFunction returns the signed margin distance for each query row.
func (s *SVC) DecisionFunction(X mat.Matrix) ([]float64, error) {
	const op = "SVC.DecisionFunction"

	if !s.state.IsFitted() {
		return nil, errors.NewNotFittedError("SVC", "DecisionFunction")
	}
	n, p := X.Dims()
	expected, _ := s.state.GetDimensions()
	if p != expected {
		return nil, errors.NewDimensionError(op, expected, p, 1)
	}

	out := make([]float64, n)
	row := make([]float64, p)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			row[j] = X.At(i, j)
		}
		sum := s.b
		for v := range s.svX {
			sum += s.svAlpha[v] * s.kernel(s.svX[v], row)
		}
		out[i] = sum
	}
	return out, nil
}

// Score returns the mean accuracy on the given test data and labels.
func (s *SVC) Score(X, y mat.Matrix) (float64, error) {
	pred, err := s.Predict(X)
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

// NSupportVectors returns the number of support vectors kept after fitting.
func (s *SVC) NSupportVectors() int { return len(s.svX) }

// GetParams returns the model hyperparameters.
func (s *SVC) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"kernel":   s.Kernel,
		"C":        s.C,
		"gamma":    s.Gamma,
		"tol":      s.Tol,
		"max_iter": s.MaxIter,
		"seed":     s.Seed,
	}
}

func (s *SVC) kernel(a, b []float64) float64 {
	switch s.Kernel {
	case KernelRBF:
		d := floats.Distance(a, b, 2)
		return math.Exp(-s.Gamma * d * d)
	default:
		return floats.Dot(a, b)
	}
}
