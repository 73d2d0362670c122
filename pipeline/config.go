package pipeline

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/histoml/histoml/pkg/errors"
)

// Config controls every randomized or swept stage of the pipeline. All
// defaults follow the evaluation protocol: 0.6/0.2/0.2 split, SMOTE k=5
// matching the majority count, kNN k swept 1-15, hidden units swept 1-10,
// 10-fold cross-validation.
type Config struct {
	// Seed drives every randomized stage. Each stage derives its own
	// offset from it, so no stage shares generator state with another.
	Seed int64 `yaml:"seed"`

	Split struct {
		Train      float64 `yaml:"train"`
		Test       float64 `yaml:"test"`
		Validation float64 `yaml:"validation"`
	} `yaml:"split"`

	SMOTE struct {
		K      int `yaml:"k"`
		Target int `yaml:"target"` // 0 means match the majority count
	} `yaml:"smote"`

	KNN struct {
		KMin int `yaml:"k_min"`
		KMax int `yaml:"k_max"`
	} `yaml:"knn"`

	Logistic struct {
		MaxIter  int  `yaml:"max_iter"`
		Stepwise bool `yaml:"stepwise"`
	} `yaml:"logistic"`

	SVM struct {
		Costs  []float64 `yaml:"costs"`
		Gammas []float64 `yaml:"gammas"`
		Folds  int       `yaml:"folds"`
	} `yaml:"svm"`

	MLP struct {
		HiddenMin    int     `yaml:"hidden_min"`
		HiddenMax    int     `yaml:"hidden_max"`
		LearningRate float64 `yaml:"learning_rate"`
		MaxIter      int     `yaml:"max_iter"`
		Folds        int     `yaml:"folds"`
	} `yaml:"mlp"`
}

// DefaultConfig returns the protocol defaults.
func DefaultConfig() Config {
	var cfg Config
	cfg.Seed = 1
	cfg.Split.Train = 0.6
	cfg.Split.Test = 0.2
	cfg.Split.Validation = 0.2
	cfg.SMOTE.K = 5
	cfg.KNN.KMin = 1
	cfg.KNN.KMax = 15
	cfg.Logistic.MaxIter = 25
	cfg.Logistic.Stepwise = true
	cfg.SVM.Costs = []float64{0.1, 1, 10}
	cfg.SVM.Gammas = []float64{0.01, 0.1, 1}
	cfg.SVM.Folds = 10
	cfg.MLP.HiddenMin = 1
	cfg.MLP.HiddenMax = 10
	cfg.MLP.LearningRate = 0.5
	cfg.MLP.MaxIter = 2000
	cfg.MLP.Folds = 10
	return cfg
}

// LoadConfig reads a YAML config file, filling unset fields from the
// defaults.
func LoadConfig(path string) (Config, error) {
	const op = "pipeline.LoadConfig"

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, op)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, op)
	}
	return cfg, nil
}
