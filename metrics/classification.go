// Package metrics implements the fixed evaluation protocol: a 2x2 confusion
// matrix with the class ordering used throughout the pipeline, and the
// accuracy / Cohen's kappa / AUC triple derived from it.
package metrics

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/histoml/histoml/pkg/errors"
)

// ConfusionMatrix is a 2x2 count of (actual, predicted) label pairs with a
// fixed class ordering: index 0 is the first (minority/positive) class,
// index 1 the second. It is derived data, recomputed per evaluation call and
// never mutated in place.
type ConfusionMatrix struct {
	// Counts[a][p] is the number of samples with actual class a predicted
	// as class p.
	Counts [2][2]int
}

// NewConfusionMatrix builds the confusion matrix from one-column matrices of
// actual and predicted class indices. It fails with an EvaluationError on
// length mismatch or labels outside {0, 1}.
func NewConfusionMatrix(yTrue, yPred mat.Matrix) (*ConfusionMatrix, error) {
	const op = "ConfusionMatrix"

	actual, err := labelColumn(op, yTrue)
	if err != nil {
		return nil, err
	}
	predicted, err := labelColumn(op, yPred)
	if err != nil {
		return nil, err
	}
	if len(actual) != len(predicted) {
		return nil, errors.NewEvaluationError(op,
			fmt.Sprintf("length mismatch: %d actual vs %d predicted", len(actual), len(predicted)))
	}

	cm := &ConfusionMatrix{}
	for i := range actual {
		cm.Counts[actual[i]][predicted[i]]++
	}
	return cm, nil
}

// Total returns the number of samples counted.
func (cm *ConfusionMatrix) Total() int {
	return cm.Counts[0][0] + cm.Counts[0][1] + cm.Counts[1][0] + cm.Counts[1][1]
}

// Accuracy is the fraction of samples on the matrix diagonal.
func (cm *ConfusionMatrix) Accuracy() float64 {
	total := cm.Total()
	if total == 0 {
		return 0
	}
	return float64(cm.Counts[0][0]+cm.Counts[1][1]) / float64(total)
}

// CohenKappa is the unweighted kappa statistic: observed agreement corrected
// by the agreement expected from the marginal totals. Returns 0 when the
// expected agreement is 1 (degenerate marginals).
func (cm *ConfusionMatrix) CohenKappa() float64 {
	total := float64(cm.Total())
	if total == 0 {
		return 0
	}

	observed := float64(cm.Counts[0][0]+cm.Counts[1][1]) / total

	actual0 := float64(cm.Counts[0][0] + cm.Counts[0][1])
	actual1 := float64(cm.Counts[1][0] + cm.Counts[1][1])
	pred0 := float64(cm.Counts[0][0] + cm.Counts[1][0])
	pred1 := float64(cm.Counts[0][1] + cm.Counts[1][1])
	expected := (actual0*pred0 + actual1*pred1) / (total * total)

	if expected == 1 {
		return 0
	}
	return (observed - expected) / (1 - expected)
}

// Accuracy computes classification accuracy from label columns directly.
func Accuracy(yTrue, yPred mat.Matrix) (float64, error) {
	cm, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return cm.Accuracy(), nil
}

// CohenKappa computes the unweighted kappa from label columns directly.
func CohenKappa(yTrue, yPred mat.Matrix) (float64, error) {
	cm, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return cm.CohenKappa(), nil
}

// AUC computes the area under the ROC curve as the Mann-Whitney rank
// statistic: the probability that a randomly chosen positive (class 1)
// sample scores higher than a randomly chosen negative one, ties counting
// one half. Scores may be probabilities or hard 0/1 labels; with hard labels
// the statistic degenerates to the balanced accuracy of the decision.
// Returns 0.5 when either class is absent.
func AUC(yTrue, score mat.Matrix) (float64, error) {
	const op = "AUC"

	actual, err := labelColumn(op, yTrue)
	if err != nil {
		return 0, err
	}
	scores, err := scoreColumn(op, score)
	if err != nil {
		return 0, err
	}
	if len(actual) != len(scores) {
		return 0, errors.NewEvaluationError(op,
			fmt.Sprintf("length mismatch: %d actual vs %d scores", len(actual), len(scores)))
	}

	type ranked struct {
		score float64
		pos   bool
	}
	items := make([]ranked, len(actual))
	nPos, nNeg := 0, 0
	for i := range actual {
		items[i] = ranked{score: scores[i], pos: actual[i] == 1}
		if actual[i] == 1 {
			nPos++
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0.5, nil
	}

	sort.Slice(items, func(i, j int) bool { return items[i].score < items[j].score })

	// Midranks over tied scores, then the Mann-Whitney U statistic.
	rankSumPos := 0.0
	i := 0
	for i < len(items) {
		j := i
		for j < len(items) && items[j].score == items[i].score {
			j++
		}
		midrank := float64(i+j+1) / 2 // ranks are 1-based
		for k := i; k < j; k++ {
			if items[k].pos {
				rankSumPos += midrank
			}
		}
		i = j
	}

	u := rankSumPos - float64(nPos)*float64(nPos+1)/2
	return u / (float64(nPos) * float64(nNeg)), nil
}

// Report bundles the metric triple and the confusion matrix for one model on
// one dataset. Formatting is the reporting collaborator's job.
type Report struct {
	Model     string
	Accuracy  float64
	Kappa     float64
	AUC       float64
	Confusion *ConfusionMatrix
}

// Evaluate computes the full report for predicted vs. actual labels.
func Evaluate(modelName string, yTrue, yPred mat.Matrix) (*Report, error) {
	cm, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	auc, err := AUC(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	return &Report{
		Model:     modelName,
		Accuracy:  cm.Accuracy(),
		Kappa:     cm.CohenKappa(),
		AUC:       auc,
		Confusion: cm,
	}, nil
}

// labelColumn extracts the first column of m as class indices, rejecting
// anything outside {0, 1}.
func labelColumn(op string, m mat.Matrix) ([]int, error) {
	if m == nil {
		return nil, errors.NewEvaluationError(op, "nil label matrix")
	}
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewEvaluationError(op, "empty label matrix")
	}
	out := make([]int, r)
	for i := 0; i < r; i++ {
		v := m.At(i, 0)
		switch v {
		case 0:
			out[i] = 0
		case 1:
			out[i] = 1
		default:
			return nil, errors.NewEvaluationError(op,
				fmt.Sprintf("label %v at row %d outside the two-class domain", v, i))
		}
	}
	return out, nil
}

// scoreColumn extracts the first column of m as raw scores.
func scoreColumn(op string, m mat.Matrix) ([]float64, error) {
	if m == nil {
		return nil, errors.NewEvaluationError(op, "nil score matrix")
	}
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewEvaluationError(op, "empty score matrix")
	}
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		out[i] = m.At(i, 0)
	}
	return out, nil
}
