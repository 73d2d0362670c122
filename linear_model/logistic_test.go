package linear_model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/histoml/histoml/core/model"
	"github.com/histoml/histoml/pkg/errors"
)

var (
	_ model.Classifier      = (*LogisticRegression)(nil)
	_ model.ParameterGetter = (*LogisticRegression)(nil)
)

// Overlapping one-dimensional data: labels mostly follow the sign of x, with
// two flipped samples so the classes are not linearly separable.
func overlappingData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(10, 1, []float64{-3, -2.5, -2, -1, -0.5, 0.5, 1, 2, 2.5, 3})
	y := mat.NewDense(10, 1, []float64{0, 0, 0, 0, 1, 0, 1, 1, 1, 1})
	return X, y
}

func TestLogisticRegressionFit(t *testing.T) {
	X, y := overlappingData()
	lr := NewLogisticRegression()
	require.NoError(t, lr.Fit(X, y))

	assert.LessOrEqual(t, lr.NIter(), 25)
	coef := lr.Coef()
	require.Len(t, coef, 1)
	assert.Positive(t, coef[0], "labels increase with x")

	score, err := lr.Score(X, y)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, 0.8)
}

func TestLogisticRegressionPredictProba(t *testing.T) {
	X, y := overlappingData()
	lr := NewLogisticRegression()
	require.NoError(t, lr.Fit(X, y))

	proba, err := lr.PredictProba(X)
	require.NoError(t, err)

	n, c := proba.Dims()
	require.Equal(t, 10, n)
	require.Equal(t, 2, c)
	for i := 0; i < n; i++ {
		assert.InDelta(t, 1.0, proba.At(i, 0)+proba.At(i, 1), 1e-12)
	}
	// Monotone in x: the class-1 probability rises with the feature.
	assert.Less(t, proba.At(0, 1), proba.At(9, 1))
}

func TestLogisticRegressionPredictThreshold(t *testing.T) {
	X, y := overlappingData()
	lr := NewLogisticRegression()
	require.NoError(t, lr.Fit(X, y))

	pred, err := lr.Predict(mat.NewDense(2, 1, []float64{-10, 10}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, pred.At(0, 0))
	assert.Equal(t, 1.0, pred.At(1, 0))
}

func TestLogisticRegressionConvergenceError(t *testing.T) {
	X, y := overlappingData()
	lr := NewLogisticRegression(WithMaxIter(1))
	err := lr.Fit(X, y)

	require.Error(t, err)
	assert.True(t, errors.IsConvergenceError(err))
}

func TestLogisticRegressionFeatureSubset(t *testing.T) {
	// Column 0 carries the signal; column 1 is ignored by the subset model.
	X := mat.NewDense(10, 2, []float64{
		-3, 100, -2.5, -100, -2, 100, -1, -100, -0.5, 100,
		0.5, -100, 1, 100, 2, -100, 2.5, 100, 3, -100,
	})
	y := mat.NewDense(10, 1, []float64{0, 0, 0, 0, 1, 0, 1, 1, 1, 1})

	lr := NewLogisticRegression(WithFeatures([]int{0}))
	require.NoError(t, lr.Fit(X, y))
	require.Len(t, lr.Coef(), 1)

	// The subset model still accepts full-width matrices.
	proba, err := lr.PredictProba(X)
	require.NoError(t, err)

	// Refitting the same subset reproduces the output exactly; the wild
	// inactive column never enters the linear predictor.
	only0 := NewLogisticRegression(WithFeatures([]int{0}))
	require.NoError(t, only0.Fit(X, y))
	probaAgain, err := only0.PredictProba(X)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(proba, probaAgain, 1e-12))
}

func TestLogisticRegressionAIC(t *testing.T) {
	X, y := overlappingData()

	lr := NewLogisticRegression()
	_, err := lr.AIC()
	var notFitted *errors.NotFittedError
	require.ErrorAs(t, err, &notFitted)

	require.NoError(t, lr.Fit(X, y))
	aic, err := lr.AIC()
	require.NoError(t, err)
	// deviance >= 0 and two parameters (slope + intercept).
	assert.GreaterOrEqual(t, aic, 4.0)
}

func TestLogisticRegressionErrors(t *testing.T) {
	t.Run("label length mismatch", func(t *testing.T) {
		lr := NewLogisticRegression()
		err := lr.Fit(mat.NewDense(1, 1, nil), mat.NewDense(2, 1, nil))
		var dimErr *errors.DimensionError
		require.ErrorAs(t, err, &dimErr)
	})

	t.Run("predict before fit", func(t *testing.T) {
		lr := NewLogisticRegression()
		_, err := lr.Predict(mat.NewDense(1, 1, nil))
		var notFitted *errors.NotFittedError
		require.ErrorAs(t, err, &notFitted)
	})

	t.Run("singular design", func(t *testing.T) {
		// Two identical columns make the normal equations singular.
		X := mat.NewDense(6, 2, []float64{
			1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6,
		})
		y := mat.NewDense(6, 1, []float64{0, 0, 1, 0, 1, 1})
		lr := NewLogisticRegression()
		err := lr.Fit(X, y)
		var dataErr *errors.DataError
		require.ErrorAs(t, err, &dataErr)
	})
}

func TestStepwiseAIC(t *testing.T) {
	// Feature "sig" carries the labels; "noiseA" and "noiseB" are
	// uninformative fixed values.
	X := mat.NewDense(12, 3, []float64{
		-3, 0.3, -0.2,
		-2.5, -0.7, 0.9,
		-2, 0.1, 0.4,
		-1.5, 0.8, -0.6,
		-1, -0.2, 0.1,
		-0.5, 0.5, -0.9,
		0.5, -0.4, 0.7,
		1, 0.6, -0.3,
		1.5, -0.9, 0.2,
		2, 0.2, -0.8,
		2.5, -0.6, 0.5,
		3, 0.4, -0.1,
	})
	y := mat.NewDense(12, 1, []float64{0, 0, 0, 0, 1, 0, 1, 0, 1, 1, 1, 1})
	names := []string{"sig", "noiseA", "noiseB"}

	result, err := StepwiseAIC(X, y, names)
	require.NoError(t, err)
	require.NotNil(t, result.Model)
	require.NotEmpty(t, result.Selected)
	require.Len(t, result.Names, len(result.Selected))
	for i, j := range result.Selected {
		assert.Equal(t, names[j], result.Names[i])
	}

	// The search never worsens the criterion relative to the full model.
	full := NewLogisticRegression()
	require.NoError(t, full.Fit(X, y))
	fullAIC, err := full.AIC()
	require.NoError(t, err)
	assert.LessOrEqual(t, result.AIC, fullAIC+1e-9)

	// The reduced model predicts through full-width matrices.
	pred, err := result.Model.Predict(X)
	require.NoError(t, err)
	r, _ := pred.Dims()
	assert.Equal(t, 12, r)
}

func TestStepwiseAICDeterminism(t *testing.T) {
	X, y := overlappingData()
	X2 := mat.NewDense(10, 2, nil)
	for i := 0; i < 10; i++ {
		X2.Set(i, 0, X.At(i, 0))
		X2.Set(i, 1, math.Sin(float64(i)*1.7))
	}
	names := []string{"sig", "noise"}

	first, err := StepwiseAIC(X2, y, names)
	require.NoError(t, err)
	second, err := StepwiseAIC(X2, y, names)
	require.NoError(t, err)

	assert.Equal(t, first.Selected, second.Selected)
	assert.Equal(t, first.AIC, second.AIC)
}

func TestStepwiseAICNamesMismatch(t *testing.T) {
	X, y := overlappingData()
	_, err := StepwiseAIC(X, y, []string{"a", "b"})
	var valErr *errors.ValueError
	require.ErrorAs(t, err, &valErr)
}
