// Package neural implements a feed-forward classifier with a single hidden
// layer, trained by full-batch gradient descent on the cross-entropy loss.
package neural

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/histoml/histoml/core/model"
	"github.com/histoml/histoml/pkg/errors"
)

// MLPClassifier is a one-hidden-layer network: tanh hidden units, a sigmoid
// output unit, cross-entropy loss. Weight initialization draws from a seeded
// Gaussian, so training is deterministic for fixed hyperparameters and seed.
type MLPClassifier struct {
	state *model.StateManager

	// Hyperparameters.
	HiddenUnits  int
	LearningRate float64
	Decay        float64 // weight decay; fixed at 0 for this task
	MaxIter      int
	Tol          float64
	Seed         int64

	// Fitted parameters.
	w1 [][]float64 // hidden x (input+1), last column is the bias
	w2 []float64   // output weights, length hidden+1, last is the bias

	nIter     int
	finalLoss float64
}

// MLPOption is a functional option for MLPClassifier.
type MLPOption func(*MLPClassifier)

// WithHiddenUnits sets the hidden layer width.
func WithHiddenUnits(units int) MLPOption {
	return func(m *MLPClassifier) { m.HiddenUnits = units }
}

// WithLearningRate sets the gradient descent step size.
func WithLearningRate(lr float64) MLPOption {
	return func(m *MLPClassifier) { m.LearningRate = lr }
}

// WithDecay sets the weight-decay coefficient.
func WithDecay(decay float64) MLPOption {
	return func(m *MLPClassifier) { m.Decay = decay }
}

// WithMaxIter sets the iteration cap.
func WithMaxIter(maxIter int) MLPOption {
	return func(m *MLPClassifier) { m.MaxIter = maxIter }
}

// WithTol sets the loss-change convergence tolerance.
func WithTol(tol float64) MLPOption {
	return func(m *MLPClassifier) { m.Tol = tol }
}

// WithSeed sets the weight-initialization seed.
func WithSeed(seed int64) MLPOption {
	return func(m *MLPClassifier) { m.Seed = seed }
}

// NewMLPClassifier creates an MLP with 5 hidden units, learning rate 0.5,
// no weight decay, and a 2000-iteration cap.
func NewMLPClassifier(opts ...MLPOption) *MLPClassifier {
	m := &MLPClassifier{
		state:        model.NewStateManager(),
		HiddenUnits:  5,
		LearningRate: 0.5,
		MaxIter:      2000,
		Tol:          1e-6,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name identifies the model family and its hidden width.
func (m *MLPClassifier) Name() string {
	return fmt.Sprintf("MLP(hidden=%d)", m.HiddenUnits)
}

// Fit trains the network until the cross-entropy change per iteration drops
// below Tol. It fails with a ConvergenceError when MaxIter is reached first.
func (m *MLPClassifier) Fit(X, y mat.Matrix) error {
	const op = "MLPClassifier.Fit"

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
	if m.HiddenUnits < 1 {
		return errors.NewValueError(op, "hidden unit count must be at least 1")
	}

	rows := make([][]float64, n)
	target := make([]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, p)
		for j := 0; j < p; j++ {
			row[j] = X.At(i, j)
		}
		rows[i] = row
		target[i] = y.At(i, 0)
	}

	h := m.HiddenUnits
	rng := rand.New(rand.NewPCG(uint64(m.Seed), uint64(m.Seed)+1))

	// Small Gaussian init keeps tanh units out of saturation at the start.
	w1 := make([][]float64, h)
	for u := range w1 {
		w1[u] = make([]float64, p+1)
		for j := range w1[u] {
			w1[u][j] = rng.NormFloat64() * 0.5
		}
	}
	w2 := make([]float64, h+1)
	for u := range w2 {
		w2[u] = rng.NormFloat64() * 0.5
	}

	hidden := make([][]float64, n)
	for i := range hidden {
		hidden[i] = make([]float64, h)
	}
	output := make([]float64, n)

	forward := func() float64 {
		loss := 0.0
		for i := 0; i < n; i++ {
			for u := 0; u < h; u++ {
				z := w1[u][p] // bias
				for j := 0; j < p; j++ {
					z += w1[u][j] * rows[i][j]
				}
				hidden[i][u] = math.Tanh(z)
			}
			z := w2[h] // bias
			for u := 0; u < h; u++ {
				z += w2[u] * hidden[i][u]
			}
			out := 1.0 / (1.0 + math.Exp(-z))
			output[i] = out

			clipped := math.Min(math.Max(out, 1e-12), 1-1e-12)
			loss -= target[i]*math.Log(clipped) + (1-target[i])*math.Log(1-clipped)
		}
		return loss / float64(n)
	}

	prevLoss := math.Inf(1)
	converged := false

	gradW1 := make([][]float64, h)
	for u := range gradW1 {
		gradW1[u] = make([]float64, p+1)
	}
	gradW2 := make([]float64, h+1)

	for iter := 0; iter < m.MaxIter; iter++ {
		loss := forward()
		m.nIter = iter + 1
		m.finalLoss = loss
		if math.Abs(prevLoss-loss) < m.Tol {
			converged = true
			break
		}
		prevLoss = loss

		for u := range gradW1 {
			for j := range gradW1[u] {
				gradW1[u][j] = 0
			}
		}
		for u := range gradW2 {
			gradW2[u] = 0
		}

		for i := 0; i < n; i++ {
			// d(loss)/d(output pre-activation) for sigmoid + cross-entropy.
			delta := (output[i] - target[i]) / float64(n)

			for u := 0; u < h; u++ {
				gradW2[u] += delta * hidden[i][u]
				// Backprop through tanh.
				dHidden := delta * w2[u] * (1 - hidden[i][u]*hidden[i][u])
				for j := 0; j < p; j++ {
					gradW1[u][j] += dHidden * rows[i][j]
				}
				gradW1[u][p] += dHidden
			}
			gradW2[h] += delta
		}

		if m.Decay > 0 {
			for u := 0; u < h; u++ {
				for j := 0; j <= p; j++ {
					gradW1[u][j] += m.Decay * w1[u][j]
				}
				gradW2[u] += m.Decay * w2[u]
			}
		}

		for u := 0; u < h; u++ {
			for j := 0; j <= p; j++ {
				w1[u][j] -= m.LearningRate * gradW1[u][j]
			}
		}
		for u := 0; u <= h; u++ {
			w2[u] -= m.LearningRate * gradW2[u]
		}
	}

	if !converged {
		return errors.NewConvergenceError("MLP", m.MaxIter,
			fmt.Sprintf("cross-entropy still changing by more than %g", m.Tol))
	}

	m.w1 = w1
	m.w2 = w2
	m.state.SetDimensions(p, n)
	m.state.SetFitted()
	return nil
}

// Predict maps the output unit through the 0.5 threshold.
func (m *MLPClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := m.PredictProba(X)
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

// PredictProba returns the output unit activation as the class-1 probability.
func (m *MLPClassifier) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	const op = "MLPClassifier.PredictProba"

	if !m.state.IsFitted() {
		return nil, errors.NewNotFittedError("MLPClassifier", "PredictProba")
	}
	n, p := X.Dims()
	expected, _ := m.state.GetDimensions()
	if p != expected {
		return nil, errors.NewDimensionError(op, expected, p, 1)
	}

	h := m.HiddenUnits
	out := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		z := m.w2[h]
		for u := 0; u < h; u++ {
			a := m.w1[u][p]
			for j := 0; j < p; j++ {
				a += m.w1[u][j] * X.At(i, j)
			}
			z += m.w2[u] * math.Tanh(a)
		}
		p1 := 1.0 / (1.0 + math.Exp(-z))
		out.Set(i, 0, 1-p1)
		out.Set(i, 1, p1)
	}
	return out, nil
}

// Score returns the mean accuracy on the given test data and labels.
func (m *MLPClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := m.Predict(X)
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

// NIter returns the number of gradient steps performed.
func (m *MLPClassifier) NIter() int { return m.nIter }

// Loss returns the final training cross-entropy.
func (m *MLPClassifier) Loss() float64 { return m.finalLoss }

// GetParams returns the model hyperparameters.
func (m *MLPClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"hidden_units":  m.HiddenUnits,
		"learning_rate": m.LearningRate,
		"decay":         m.Decay,
		"max_iter":      m.MaxIter,
		"tol":           m.Tol,
		"seed":          m.Seed,
	}
}
