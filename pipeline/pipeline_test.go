package pipeline

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/histoml/histoml/dataset"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, int64(1), cfg.Seed)
	assert.Equal(t, 0.6, cfg.Split.Train)
	assert.Equal(t, 0.2, cfg.Split.Test)
	assert.Equal(t, 0.2, cfg.Split.Validation)
	assert.Equal(t, 5, cfg.SMOTE.K)
	assert.Equal(t, 1, cfg.KNN.KMin)
	assert.Equal(t, 15, cfg.KNN.KMax)
	assert.Equal(t, 25, cfg.Logistic.MaxIter)
	assert.True(t, cfg.Logistic.Stepwise)
	assert.Equal(t, []float64{0.1, 1, 10}, cfg.SVM.Costs)
	assert.Equal(t, []float64{0.01, 0.1, 1}, cfg.SVM.Gammas)
	assert.Equal(t, 10, cfg.SVM.Folds)
	assert.Equal(t, 10, cfg.MLP.HiddenMax)
	assert.Equal(t, 10, cfg.MLP.Folds)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
seed: 99
split:
  train: 0.7
  test: 0.15
  validation: 0.15
knn:
  k_max: 7
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, int64(99), cfg.Seed)
	assert.Equal(t, 0.7, cfg.Split.Train)
	assert.Equal(t, 7, cfg.KNN.KMax)

	// Unset fields keep their defaults.
	assert.Equal(t, 1, cfg.KNN.KMin)
	assert.Equal(t, 5, cfg.SMOTE.K)
	assert.True(t, cfg.Logistic.Stepwise)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

// syntheticTumors draws an imbalanced two-class dataset where the first three
// genes separate the classes and the rest are noise.
func syntheticTumors(t *testing.T, nMinority, nMajority int, seed uint64) *dataset.Dataset {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed))
	genes := []string{"BRCA1", "GATA3", "CDH1", "ESR1", "FOXA1", "KRT8", "TP53", "MKI67"}

	var samples []dataset.Sample
	add := func(n int, label string, shift float64) {
		for i := 0; i < n; i++ {
			features := make([]float64, len(genes))
			for j := range features {
				features[j] = rng.NormFloat64()
				if j < 3 {
					features[j] += shift
				}
			}
			samples = append(samples, dataset.Sample{
				ID:       fmt.Sprintf("%s-%03d", label, i),
				Features: features,
				Label:    label,
			})
		}
	}
	add(nMinority, "lobular", 1.5)
	add(nMajority, "ductal", 0)

	ds, err := dataset.New(genes, [2]string{"lobular", "ductal"}, samples)
	require.NoError(t, err)
	return ds
}

// A trimmed sweep keeps the end-to-end test fast without changing any of the
// pipeline's structure.
func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.KNN.KMax = 5
	cfg.SVM.Costs = []float64{1}
	cfg.SVM.Gammas = []float64{0.5}
	cfg.SVM.Folds = 3
	cfg.MLP.HiddenMin = 2
	cfg.MLP.HiddenMax = 3
	cfg.MLP.Folds = 3
	return cfg
}

func TestRunEndToEnd(t *testing.T) {
	ds := syntheticTumors(t, 60, 180, 11)
	cfg := fastConfig()
	logger := zerolog.Nop()

	result, err := Run(ds, cfg, logger)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.NotEmpty(t, result.RunID)

	// One model per family: kNN, logistic, linear SVM, RBF SVM, MLP.
	require.Len(t, result.Models, 5)
	require.Len(t, result.PerModel, 5)

	for _, pm := range result.PerModel {
		require.NotNil(t, pm.Test, "%s test report", pm.Name)
		require.NotNil(t, pm.Validation, "%s validation report", pm.Name)
		assert.GreaterOrEqual(t, pm.Test.Accuracy, 0.0)
		assert.LessOrEqual(t, pm.Test.Accuracy, 1.0)
		assert.GreaterOrEqual(t, pm.Test.AUC, 0.0)
		assert.LessOrEqual(t, pm.Test.AUC, 1.0)
	}

	// Stepwise selection ran and kept a non-empty gene subset.
	assert.NotEmpty(t, result.SelectedGenes)
	genes := map[string]bool{}
	for _, g := range ds.Genes() {
		genes[g] = true
	}
	for _, g := range result.SelectedGenes {
		assert.True(t, genes[g], "selected gene %q is not in the schema", g)
	}

	// The informative genes make this an easy problem; the weighted vote
	// should comfortably beat a coin flip.
	require.NotNil(t, result.Ensemble.Test)
	require.NotNil(t, result.Ensemble.Validation)
	assert.Greater(t, result.Ensemble.Test.Accuracy, 0.5)
}

func TestRunDeterminism(t *testing.T) {
	ds := syntheticTumors(t, 60, 180, 12)
	cfg := fastConfig()
	logger := zerolog.Nop()

	first, err := Run(ds, cfg, logger)
	require.NoError(t, err)
	second, err := Run(ds, cfg, logger)
	require.NoError(t, err)

	// Run ids differ, everything derived from the seed does not.
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.SelectedGenes, second.SelectedGenes)

	require.Len(t, second.PerModel, len(first.PerModel))
	for i := range first.PerModel {
		assert.Equal(t, first.PerModel[i].Name, second.PerModel[i].Name)
		assert.Equal(t, first.PerModel[i].Test.Accuracy, second.PerModel[i].Test.Accuracy)
		assert.Equal(t, first.PerModel[i].Test.Kappa, second.PerModel[i].Test.Kappa)
		assert.Equal(t, first.PerModel[i].Test.AUC, second.PerModel[i].Test.AUC)
	}
	assert.Equal(t, first.Ensemble.Test.Accuracy, second.Ensemble.Test.Accuracy)
}

func TestRunRejectsBadSplit(t *testing.T) {
	ds := syntheticTumors(t, 30, 90, 13)
	cfg := fastConfig()
	cfg.Split.Train = 0.9
	cfg.Split.Test = 0.3
	cfg.Split.Validation = 0.3

	_, err := Run(ds, cfg, zerolog.Nop())
	require.Error(t, err)
}
