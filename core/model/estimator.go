package model

import "gonum.org/v1/gonum/mat"

// Fitter is the interface for trainable models. Labels are passed as a
// one-column matrix of class indices (0 = first class, 1 = second class,
// ordering fixed by the dataset's class domain).
type Fitter interface {
	// Fit trains the model. Implementations must be deterministic for a
	// fixed seed and fixed hyperparameters, and must not mutate X or y.
	Fit(X, y mat.Matrix) error
}

// Predictor is the interface for models that map feature vectors to labels.
type Predictor interface {
	// Predict returns a one-column matrix of predicted class indices.
	// It must not mutate the model.
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Classifier is the common surface the evaluator and the ensembler operate
// on, regardless of model family. New families plug in without touching
// evaluation code.
type Classifier interface {
	Fitter
	Predictor

	// Name identifies the model family plus its fitted hyperparameters,
	// e.g. "kNN(k=7)" or "SVC(kernel=rbf, C=1, gamma=0.1)".
	Name() string

	// Score returns the mean accuracy on the given test data and labels.
	Score(X, y mat.Matrix) (float64, error)
}

// ProbabilityPredictor is implemented by families that can emit class
// probabilities in addition to hard labels.
type ProbabilityPredictor interface {
	// PredictProba returns an (n_samples x 2) matrix of class probabilities.
	PredictProba(X mat.Matrix) (mat.Matrix, error)
}

// ParameterGetter exposes a model's hyperparameters for logging and reports.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}
