package linear_model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/histoml/histoml/pkg/errors"
)

// StepwiseResult is the outcome of a bidirectional AIC search: the refitted
// reduced model, the selected feature indices and names, and the AIC reached.
// The optimum is local, not global; a greedy search stops at the first step
// where no single add or remove improves the criterion.
type StepwiseResult struct {
	Model    *LogisticRegression
	Selected []int
	Names    []string
	AIC      float64
}

// StepwiseAIC performs bidirectional stepwise selection starting from the
// full feature set. Each step considers adding or removing exactly one
// feature, refits the candidate model, and applies the single change that
// most improves AIC. Candidate ties are broken lexicographically by feature
// name so the search is reproducible.
func StepwiseAIC(X, y mat.Matrix, names []string, opts ...LogisticRegressionOption) (*StepwiseResult, error) {
	const op = "StepwiseAIC"

	_, p := X.Dims()
	if len(names) != p {
		return nil, errors.NewValueError(op,
			fmt.Sprintf("got %d feature names for %d columns", len(names), p))
	}

	included := make([]bool, p)
	for j := range included {
		included[j] = true
	}

	current, err := fitSubset(X, y, featureSet(included), opts)
	if err != nil {
		return nil, errors.Wrap(err, "fitting the full model")
	}
	currentAIC, err := current.AIC()
	if err != nil {
		return nil, err
	}

	for {
		bestAIC := currentAIC
		bestFeature := -1
		var bestModel *LogisticRegression

		for j := 0; j < p; j++ {
			candidate := toggled(included, j)
			if countTrue(candidate) == 0 {
				continue
			}
			m, err := fitSubset(X, y, featureSet(candidate), opts)
			if err != nil {
				return nil, errors.Wrapf(err, "candidate step on feature %s", names[j])
			}
			aic, err := m.AIC()
			if err != nil {
				return nil, err
			}

			better := aic < bestAIC
			// Lexicographic tie-breaking keeps the search deterministic.
			tie := aic == bestAIC && bestFeature >= 0 && names[j] < names[bestFeature]
			if better || tie {
				bestAIC = aic
				bestFeature = j
				bestModel = m
			}
		}

		if bestFeature < 0 {
			break
		}
		included[bestFeature] = !included[bestFeature]
		current = bestModel
		currentAIC = bestAIC
	}

	selected := featureSet(included)
	selectedNames := make([]string, len(selected))
	for i, j := range selected {
		selectedNames[i] = names[j]
	}
	return &StepwiseResult{
		Model:    current,
		Selected: selected,
		Names:    selectedNames,
		AIC:      currentAIC,
	}, nil
}

func fitSubset(X, y mat.Matrix, features []int, opts []LogisticRegressionOption) (*LogisticRegression, error) {
	all := append([]LogisticRegressionOption{}, opts...)
	all = append(all, WithFeatures(features))
	m := NewLogisticRegression(all...)
	if err := m.Fit(X, y); err != nil {
		return nil, err
	}
	return m, nil
}

func toggled(included []bool, j int) []bool {
	out := append([]bool(nil), included...)
	out[j] = !out[j]
	return out
}

func featureSet(included []bool) []int {
	var set []int
	for j, in := range included {
		if in {
			set = append(set, j)
		}
	}
	return set
}

func countTrue(b []bool) int {
	n := 0
	for _, v := range b {
		if v {
			n++
		}
	}
	return n
}
