// Package pipeline wires the full evaluation protocol together: robust
// scaling, stratified splitting, minority oversampling, per-family training
// with hyperparameter sweeps, metric computation, and diagnostic ensembling.
package pipeline

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/histoml/histoml/core/model"
	"github.com/histoml/histoml/dataset"
	"github.com/histoml/histoml/ensemble"
	"github.com/histoml/histoml/linear_model"
	"github.com/histoml/histoml/metrics"
	"github.com/histoml/histoml/modelselection"
	"github.com/histoml/histoml/neighbors"
	"github.com/histoml/histoml/neural"
	"github.com/histoml/histoml/pkg/errors"
	"github.com/histoml/histoml/preprocessing"
	"github.com/histoml/histoml/resample"
	"github.com/histoml/histoml/svm"
)

// ModelReports holds one model's evaluation on the test and validation
// partitions.
type ModelReports struct {
	Name       string
	Test       *metrics.Report
	Validation *metrics.Report
}

// Result is the outcome of one pipeline run: per-model and ensemble metric
// reports, the fitted models, and the genes retained by stepwise selection.
type Result struct {
	RunID  string
	Models []model.Classifier

	PerModel []ModelReports
	Ensemble ModelReports

	// SelectedGenes are the features the stepwise-AIC logistic model kept;
	// nil when stepwise selection is disabled.
	SelectedGenes []string
}

// Run executes the full protocol on ds. Every randomized stage derives its
// seed from cfg.Seed, so a (dataset, config) pair fully determines the
// result.
func Run(ds *dataset.Dataset, cfg Config, logger zerolog.Logger) (*Result, error) {
	runID := uuid.NewString()
	log := logger.With().Str("run_id", runID).Logger()

	counts := ds.ClassCounts()
	log.Info().
		Int("samples", ds.Len()).
		Int("genes", len(ds.Genes())).
		Int("class0", counts[0]).
		Int("class1", counts[1]).
		Msg("pipeline start")

	// Scaling statistics are fit on the full pre-split matrix. This is the
	// documented protocol and a known minor leakage point; a stricter
	// variant would fit on the training partition only.
	scaler := preprocessing.NewRobustScaler(ds.Genes())
	scaled, err := scaler.FitTransform(ds.X())
	if err != nil {
		return nil, errors.Wrap(err, "preprocessing")
	}
	scaledDS, err := ds.WithFeatures(scaled)
	if err != nil {
		return nil, errors.Wrap(err, "preprocessing")
	}
	log.Info().Bool("fit_before_split", true).Msg("scaling done")

	splitter := &dataset.StratifiedSplitter{
		Train:      cfg.Split.Train,
		Test:       cfg.Split.Test,
		Validation: cfg.Split.Validation,
		Seed:       cfg.Seed,
	}
	train, test, validation, err := splitter.Split(scaledDS)
	if err != nil {
		return nil, errors.Wrap(err, "splitting")
	}
	log.Info().
		Int("train", train.Len()).
		Int("test", test.Len()).
		Int("validation", validation.Len()).
		Msg("split done")

	smote := &resample.SMOTE{K: cfg.SMOTE.K, TargetCount: cfg.SMOTE.Target, Seed: cfg.Seed + 1}
	train, err = smote.Resample(train)
	if err != nil {
		return nil, errors.Wrap(err, "oversampling")
	}
	balanced := train.ClassCounts()
	log.Info().Int("class0", balanced[0]).Int("class1", balanced[1]).Msg("oversampling done")

	trainX, trainY := train.X(), train.Y()
	testX, testY := test.X(), test.Y()
	valX, valY := validation.X(), validation.Y()

	result := &Result{RunID: runID}

	// kNN: k swept on held-out accuracy.
	knnCands := make([]modelselection.Candidate, 0, cfg.KNN.KMax-cfg.KNN.KMin+1)
	for k := cfg.KNN.KMin; k <= cfg.KNN.KMax; k++ {
		k := k
		knnCands = append(knnCands, modelselection.Candidate{
			Name:  fmt.Sprintf("kNN(k=%d)", k),
			Build: func() model.Classifier { return neighbors.NewKNNClassifier(k) },
		})
	}
	knnResults, knnBest, err := modelselection.Sweep(knnCands, trainX, trainY, testX, testY)
	if err != nil {
		return nil, errors.Wrap(err, "kNN sweep")
	}
	logSweep(log, "knn", knnResults, knnBest)
	result.Models = append(result.Models, knnResults[knnBest].Model)

	// Logistic regression, optionally reduced by stepwise AIC.
	var logit model.Classifier
	if cfg.Logistic.Stepwise {
		step, err := linear_model.StepwiseAIC(trainX, trainY, train.Genes(),
			linear_model.WithMaxIter(cfg.Logistic.MaxIter))
		if err != nil {
			return nil, errors.Wrap(err, "stepwise logistic regression")
		}
		logit = step.Model
		result.SelectedGenes = step.Names
		log.Info().Int("selected", len(step.Names)).Float64("aic", step.AIC).Msg("stepwise done")
	} else {
		lr := linear_model.NewLogisticRegression(linear_model.WithMaxIter(cfg.Logistic.MaxIter))
		if err := lr.Fit(trainX, trainY); err != nil {
			return nil, errors.Wrap(err, "logistic regression")
		}
		logit = lr
	}
	result.Models = append(result.Models, logit)

	// SVMs: cost (and gamma for RBF) selected by stratified k-fold CV.
	cvSplitter := modelselection.NewStratifiedKFold(cfg.SVM.Folds, true, cfg.Seed+2)

	var linearCands []modelselection.Candidate
	for _, cost := range cfg.SVM.Costs {
		cost := cost
		linearCands = append(linearCands, modelselection.Candidate{
			Name: fmt.Sprintf("SVC(kernel=linear, C=%g)", cost),
			Build: func() model.Classifier {
				return svm.NewSVC(svm.WithC(cost), svm.WithSeed(cfg.Seed+3))
			},
		})
	}
	linResults, linBest, err := modelselection.SweepCV(linearCands, trainX, trainY, cvSplitter)
	if err != nil {
		return nil, errors.Wrap(err, "linear SVM sweep")
	}
	logSweep(log, "svm_linear", linResults, linBest)
	result.Models = append(result.Models, linResults[linBest].Model)

	var rbfCands []modelselection.Candidate
	for _, cost := range cfg.SVM.Costs {
		for _, gamma := range cfg.SVM.Gammas {
			cost, gamma := cost, gamma
			rbfCands = append(rbfCands, modelselection.Candidate{
				Name: fmt.Sprintf("SVC(kernel=rbf, C=%g, gamma=%g)", cost, gamma),
				Build: func() model.Classifier {
					return svm.NewSVC(svm.WithKernel(svm.KernelRBF),
						svm.WithC(cost), svm.WithGamma(gamma), svm.WithSeed(cfg.Seed+4))
				},
			})
		}
	}
	rbfResults, rbfBest, err := modelselection.SweepCV(rbfCands, trainX, trainY, cvSplitter)
	if err != nil {
		return nil, errors.Wrap(err, "RBF SVM sweep")
	}
	logSweep(log, "svm_rbf", rbfResults, rbfBest)
	result.Models = append(result.Models, rbfResults[rbfBest].Model)

	// MLP: hidden-unit count selected by stratified k-fold CV.
	mlpSplitter := modelselection.NewStratifiedKFold(cfg.MLP.Folds, true, cfg.Seed+5)
	var mlpCands []modelselection.Candidate
	for h := cfg.MLP.HiddenMin; h <= cfg.MLP.HiddenMax; h++ {
		h := h
		mlpCands = append(mlpCands, modelselection.Candidate{
			Name: fmt.Sprintf("MLP(hidden=%d)", h),
			Build: func() model.Classifier {
				return neural.NewMLPClassifier(
					neural.WithHiddenUnits(h),
					neural.WithLearningRate(cfg.MLP.LearningRate),
					neural.WithMaxIter(cfg.MLP.MaxIter),
					neural.WithSeed(cfg.Seed+6))
			},
		})
	}
	mlpResults, mlpBest, err := modelselection.SweepCV(mlpCands, trainX, trainY, mlpSplitter)
	if err != nil {
		return nil, errors.Wrap(err, "MLP sweep")
	}
	logSweep(log, "mlp", mlpResults, mlpBest)
	result.Models = append(result.Models, mlpResults[mlpBest].Model)

	// Per-model evaluation on both held-out partitions.
	for _, clf := range result.Models {
		reports, err := evaluateModel(clf, testX, testY, valX, valY)
		if err != nil {
			return nil, err
		}
		result.PerModel = append(result.PerModel, reports)
		log.Info().
			Str("model", reports.Name).
			Float64("test_accuracy", reports.Test.Accuracy).
			Float64("test_kappa", reports.Test.Kappa).
			Float64("test_auc", reports.Test.AUC).
			Msg("model evaluated")
	}

	// Diagnostic ensemble: weights come from the same partition being
	// classified, on both evaluation sets independently.
	voting, err := ensemble.NewVotingClassifier(result.Models...)
	if err != nil {
		return nil, err
	}
	result.Ensemble, err = evaluateEnsemble(voting, testX, testY, valX, valY)
	if err != nil {
		return nil, err
	}
	log.Info().
		Float64("test_accuracy", result.Ensemble.Test.Accuracy).
		Float64("validation_accuracy", result.Ensemble.Validation.Accuracy).
		Msg("ensemble evaluated")

	return result, nil
}

func evaluateModel(clf model.Classifier, testX, testY, valX, valY mat.Matrix) (ModelReports, error) {
	reports := ModelReports{Name: clf.Name()}

	testPred, err := clf.Predict(testX)
	if err != nil {
		return reports, errors.Wrapf(err, "evaluating %s on test", clf.Name())
	}
	reports.Test, err = metrics.Evaluate(clf.Name(), testY, testPred)
	if err != nil {
		return reports, err
	}

	valPred, err := clf.Predict(valX)
	if err != nil {
		return reports, errors.Wrapf(err, "evaluating %s on validation", clf.Name())
	}
	reports.Validation, err = metrics.Evaluate(clf.Name(), valY, valPred)
	if err != nil {
		return reports, err
	}
	return reports, nil
}

func evaluateEnsemble(voting *ensemble.VotingClassifier, testX, testY, valX, valY mat.Matrix) (ModelReports, error) {
	reports := ModelReports{Name: "ensemble"}

	testPred, err := voting.Predict(testX, testY)
	if err != nil {
		return reports, errors.Wrap(err, "ensemble on test")
	}
	reports.Test, err = metrics.Evaluate("ensemble", testY, testPred)
	if err != nil {
		return reports, err
	}

	valPred, err := voting.Predict(valX, valY)
	if err != nil {
		return reports, errors.Wrap(err, "ensemble on validation")
	}
	reports.Validation, err = metrics.Evaluate("ensemble", valY, valPred)
	if err != nil {
		return reports, err
	}
	return reports, nil
}

func logSweep(log zerolog.Logger, family string, results []modelselection.CandidateResult, best int) {
	skipped := 0
	for i := range results {
		if results[i].Err != nil {
			skipped++
			log.Warn().
				Str("family", family).
				Str("candidate", results[i].Name).
				AnErr("err", results[i].Err).
				Msg("sweep candidate failed to converge, excluded")
		}
	}
	log.Info().
		Str("family", family).
		Str("best", results[best].Name).
		Float64("accuracy", results[best].Accuracy).
		Float64("kappa", results[best].Kappa).
		Float64("auc", results[best].AUC).
		Int("candidates", len(results)).
		Int("skipped", skipped).
		Msg("sweep done")
}
