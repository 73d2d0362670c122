// Package neighbors implements the k-nearest-neighbor classifier. Fit is
// lazy: it stores the training set; all work happens at prediction time.
package neighbors

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/histoml/histoml/core/model"
	"github.com/histoml/histoml/core/parallel"
	"github.com/histoml/histoml/pkg/errors"
)

// KNNClassifier assigns each query the majority label among its k nearest
// training vectors by Euclidean distance. Vote ties go to the label of the
// nearest neighbor, so the smallest-distance-first candidate ordering
// decides.
type KNNClassifier struct {
	state *model.StateManager

	// K is the neighbor count. Default 5.
	K int

	trainX [][]float64
	trainY []int
}

// NewKNNClassifier creates a kNN classifier with the given k.
func NewKNNClassifier(k int) *KNNClassifier {
	if k < 1 {
		k = 5
	}
	return &KNNClassifier{state: model.NewStateManager(), K: k}
}

// Name identifies the model family and its hyperparameter.
func (c *KNNClassifier) Name() string { return fmt.Sprintf("kNN(k=%d)", c.K) }

// Fit stores a copy of the training set. kNN is a lazy model; no other work
// is done here.
func (c *KNNClassifier) Fit(X, y mat.Matrix) error {
	const op = "KNNClassifier.Fit"

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
	if c.K > n {
		return errors.NewValueError(op, fmt.Sprintf("k=%d exceeds %d training samples", c.K, n))
	}

	c.trainX = make([][]float64, n)
	c.trainY = make([]int, n)
	for i := 0; i < n; i++ {
		row := make([]float64, p)
		for j := 0; j < p; j++ {
			row[j] = X.At(i, j)
		}
		c.trainX[i] = row
		c.trainY[i] = int(y.At(i, 0))
	}

	c.state.SetDimensions(p, n)
	c.state.SetFitted()
	return nil
}

// Predict classifies each query row. Queries are independent, so prediction
// is parallelized across CPU cores.
func (c *KNNClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	votes, err := c.voteFractions(X, "Predict")
	if err != nil {
		return nil, err
	}

	n := len(votes)
	out := mat.NewDense(n, 1, nil)
	for i, v := range votes {
		if v.classOne > 0.5 || (v.classOne == 0.5 && v.nearestLabel == 1) {
			out.Set(i, 0, 1)
		}
	}
	return out, nil
}

// PredictProba returns the neighbor vote fractions as class probabilities.
func (c *KNNClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	votes, err := c.voteFractions(X, "PredictProba")
	if err != nil {
		return nil, err
	}

	out := mat.NewDense(len(votes), 2, nil)
	for i, v := range votes {
		out.Set(i, 0, 1-v.classOne)
		out.Set(i, 1, v.classOne)
	}
	return out, nil
}

// Score returns the mean accuracy on the given test data and labels.
func (c *KNNClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := c.Predict(X)
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

// GetParams returns the model hyperparameters.
func (c *KNNClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{"k": c.K}
}

type vote struct {
	classOne     float64 // fraction of the k neighbors labeled class 1
	nearestLabel int
}

func (c *KNNClassifier) voteFractions(X mat.Matrix, method string) ([]vote, error) {
	if !c.state.IsFitted() {
		return nil, errors.NewNotFittedError("KNNClassifier", method)
	}

	n, p := X.Dims()
	nFeatures, _ := c.state.GetDimensions()
	if p != nFeatures {
		return nil, errors.NewDimensionError("KNNClassifier."+method, nFeatures, p, 1)
	}

	query := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, p)
		for j := 0; j < p; j++ {
			row[j] = X.At(i, j)
		}
		query[i] = row
	}

	votes := make([]vote, n)
	parallel.Parallelize(n, func(start, end int) {
		for i := start; i < end; i++ {
			votes[i] = c.voteSingle(query[i])
		}
	})
	return votes, nil
}

// voteSingle maintains a bounded list of the k nearest neighbors found so
// far, sorted smallest-distance-first. Equal distances keep training order,
// which fixes the tie-breaking deterministically.
func (c *KNNClassifier) voteSingle(x []float64) vote {
	type neighbor struct {
		dist  float64
		label int
	}

	nbrs := make([]neighbor, 0, c.K+1)
	for j, tx := range c.trainX {
		d := sqDistance(x, tx)
		if len(nbrs) == c.K && d >= nbrs[c.K-1].dist {
			continue
		}
		nbrs = append(nbrs, neighbor{dist: d, label: c.trainY[j]})
		sort.SliceStable(nbrs, func(a, b int) bool { return nbrs[a].dist < nbrs[b].dist })
		if len(nbrs) > c.K {
			nbrs = nbrs[:c.K]
		}
	}

	ones := 0
	for _, nb := range nbrs {
		ones += nb.label
	}
	return vote{
		classOne:     float64(ones) / float64(len(nbrs)),
		nearestLabel: nbrs[0].label,
	}
}

func sqDistance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
