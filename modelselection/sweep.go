package modelselection

import (
	"gonum.org/v1/gonum/mat"

	"github.com/histoml/histoml/core/model"
	"github.com/histoml/histoml/core/parallel"
	"github.com/histoml/histoml/metrics"
	"github.com/histoml/histoml/pkg/errors"
)

// Candidate is one hyperparameter configuration in a sweep. Build must
// return a fresh, unfitted classifier each call so candidates can be
// evaluated in parallel without shared state; any seed belongs inside the
// configuration so results are deterministic and order-independent.
type Candidate struct {
	Name  string
	Build func() model.Classifier
}

// CandidateResult is the outcome for one candidate, stored at the
// candidate's index in the results slice. Selection maximizes accuracy;
// kappa and AUC are recorded for diagnostics. A candidate whose training
// returned a ConvergenceError carries it in Err and is excluded from
// selection, while the sweep as a whole continues.
type CandidateResult struct {
	Name     string
	Accuracy float64
	Kappa    float64
	AUC      float64
	Model    model.Classifier
	Err      error
}

// Sweep fits every candidate on the training data, evaluates it on the
// held-out set, and returns the per-candidate results plus the index of the
// accuracy-maximizing candidate. Candidates run in parallel; each writes
// only to its own slot. Errors other than ConvergenceError abort the sweep;
// if every candidate fails to converge the sweep fails outright.
func Sweep(candidates []Candidate, trainX, trainY, evalX, evalY mat.Matrix) ([]CandidateResult, int, error) {
	const op = "modelselection.Sweep"

	if len(candidates) == 0 {
		return nil, -1, errors.NewValueError(op, "no candidates")
	}

	results := make([]CandidateResult, len(candidates))
	parallel.ForEach(len(candidates), func(i int) {
		results[i] = evaluateCandidate(candidates[i], trainX, trainY, evalX, evalY)
	})

	return pickBest(op, results)
}

// SweepCV fits and scores every candidate by k-fold cross-validation on the
// training data, selecting the candidate with the highest mean held-out-fold
// accuracy. A ConvergenceError on any fold marks the whole candidate failed.
func SweepCV(candidates []Candidate, X, y mat.Matrix, splitter Splitter) ([]CandidateResult, int, error) {
	const op = "modelselection.SweepCV"

	if len(candidates) == 0 {
		return nil, -1, errors.NewValueError(op, "no candidates")
	}

	folds := splitter.Split(X, y)
	results := make([]CandidateResult, len(candidates))
	parallel.ForEach(len(candidates), func(i int) {
		results[i] = crossValidateCandidate(candidates[i], X, y, folds)
	})

	return pickBest(op, results)
}

func evaluateCandidate(c Candidate, trainX, trainY, evalX, evalY mat.Matrix) CandidateResult {
	res := CandidateResult{Name: c.Name}

	clf := c.Build()
	if err := clf.Fit(trainX, trainY); err != nil {
		res.Err = err
		return res
	}
	pred, err := clf.Predict(evalX)
	if err != nil {
		res.Err = err
		return res
	}
	report, err := metrics.Evaluate(c.Name, evalY, pred)
	if err != nil {
		res.Err = err
		return res
	}

	res.Accuracy = report.Accuracy
	res.Kappa = report.Kappa
	res.AUC = report.AUC
	res.Model = clf
	return res
}

func crossValidateCandidate(c Candidate, X, y mat.Matrix, folds []Fold) CandidateResult {
	res := CandidateResult{Name: c.Name}

	accSum, kappaSum, aucSum := 0.0, 0.0, 0.0
	for _, fold := range folds {
		trainX, trainY := Subset(X, y, fold.TrainIndices)
		testX, testY := Subset(X, y, fold.TestIndices)

		fr := evaluateCandidate(c, trainX, trainY, testX, testY)
		if fr.Err != nil {
			res.Err = fr.Err
			return res
		}
		accSum += fr.Accuracy
		kappaSum += fr.Kappa
		aucSum += fr.AUC
	}

	n := float64(len(folds))
	res.Accuracy = accSum / n
	res.Kappa = kappaSum / n
	res.AUC = aucSum / n

	// Refit the candidate on the full training data for downstream use.
	clf := c.Build()
	if err := clf.Fit(X, y); err != nil {
		res.Err = err
		return res
	}
	res.Model = clf
	return res
}

// pickBest selects the accuracy-maximizing candidate, skipping recorded
// ConvergenceErrors and surfacing any other error immediately.
func pickBest(op string, results []CandidateResult) ([]CandidateResult, int, error) {
	best := -1
	for i := range results {
		if results[i].Err != nil {
			if errors.IsConvergenceError(results[i].Err) {
				continue
			}
			return results, -1, errors.Wrapf(results[i].Err, "candidate %s", results[i].Name)
		}
		if best < 0 || results[i].Accuracy > results[best].Accuracy {
			best = i
		}
	}
	if best < 0 {
		return results, -1, errors.NewConvergenceError(op, len(results),
			"every candidate failed to converge")
	}
	return results, best, nil
}
