// Package ensemble combines fitted classifiers by accuracy-weighted voting.
//
// This is a diagnostic technique: the weights are computed from each model's
// accuracy on the same dataset being classified, so it is not a test-blind
// inference path. A production variant would fix weights from training-time
// cross-validation before scoring unseen data.
package ensemble

import (
	"gonum.org/v1/gonum/mat"

	"github.com/histoml/histoml/core/model"
	"github.com/histoml/histoml/pkg/errors"
)

// VotingClassifier weights each member by its standalone accuracy on the
// evaluation set, normalized to sum to 1, and classifies each sample as
// class 1 when the weighted sum of class-1 indicators reaches 0.5. Weights
// are recomputed on every call and never cached across datasets.
type VotingClassifier struct {
	members []model.Classifier
}

// NewVotingClassifier creates a voting ensemble over fitted classifiers.
func NewVotingClassifier(members ...model.Classifier) (*VotingClassifier, error) {
	if len(members) == 0 {
		return nil, errors.NewValueError("NewVotingClassifier", "no member models")
	}
	return &VotingClassifier{members: append([]model.Classifier(nil), members...)}, nil
}

// Weights returns each member's accuracy on (X, y) normalized to sum to 1.
// When every member scores zero the weights fall back to uniform.
func (v *VotingClassifier) Weights(X, y mat.Matrix) (map[string]float64, error) {
	accuracies, err := v.memberAccuracies(X, y)
	if err != nil {
		return nil, err
	}

	weights := make(map[string]float64, len(v.members))
	for i, m := range v.members {
		weights[m.Name()] = accuracies[i]
	}
	return weights, nil
}

// Predict computes the weighted vote for each row of X. The weights come
// from the members' accuracies on the same (X, y); see the package comment.
func (v *VotingClassifier) Predict(X, y mat.Matrix) (mat.Matrix, error) {
	weights, err := v.memberAccuracies(X, y)
	if err != nil {
		return nil, err
	}

	n, _ := X.Dims()
	sums := make([]float64, n)
	for i, m := range v.members {
		pred, err := m.Predict(X)
		if err != nil {
			return nil, errors.Wrapf(err, "member %s", m.Name())
		}
		for r := 0; r < n; r++ {
			// Class indicator: 0 for the first class, 1 for the second.
			sums[r] += weights[i] * pred.At(r, 0)
		}
	}

	out := mat.NewDense(n, 1, nil)
	for r := 0; r < n; r++ {
		if sums[r] >= 0.5 {
			out.Set(r, 0, 1)
		}
	}
	return out, nil
}

// memberAccuracies returns normalized per-member accuracies in member order.
func (v *VotingClassifier) memberAccuracies(X, y mat.Matrix) ([]float64, error) {
	accuracies := make([]float64, len(v.members))
	total := 0.0
	for i, m := range v.members {
		acc, err := m.Score(X, y)
		if err != nil {
			return nil, errors.Wrapf(err, "scoring member %s", m.Name())
		}
		accuracies[i] = acc
		total += acc
	}

	if total == 0 {
		for i := range accuracies {
			accuracies[i] = 1 / float64(len(accuracies))
		}
		return accuracies, nil
	}
	for i := range accuracies {
		accuracies[i] /= total
	}
	return accuracies, nil
}
