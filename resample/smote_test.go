package resample

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/histoml/histoml/dataset"
	"github.com/histoml/histoml/pkg/errors"
)

func imbalancedTrainingSet(t *testing.T, nMinority, nMajority int, seed uint64) *dataset.Dataset {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed))
	genes := []string{"g1", "g2", "g3"}

	var samples []dataset.Sample
	for i := 0; i < nMinority; i++ {
		samples = append(samples, dataset.Sample{
			ID:       fmt.Sprintf("lob-%03d", i),
			Features: []float64{rng.NormFloat64() + 2, rng.NormFloat64(), rng.NormFloat64()},
			Label:    "lobular",
		})
	}
	for i := 0; i < nMajority; i++ {
		samples = append(samples, dataset.Sample{
			ID:       fmt.Sprintf("duc-%03d", i),
			Features: []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()},
			Label:    "ductal",
		})
	}
	ds, err := dataset.New(genes, [2]string{"lobular", "ductal"}, samples)
	require.NoError(t, err)
	return ds
}

func TestResampleBalancesClasses(t *testing.T) {
	train := imbalancedTrainingSet(t, 90, 900, 1)

	out, err := NewSMOTE(42).Resample(train)
	require.NoError(t, err)

	counts := out.ClassCounts()
	assert.Equal(t, 900, counts[0], "minority oversampled to the majority count")
	assert.Equal(t, 900, counts[1], "majority untouched")
	assert.Equal(t, 1800, out.Len())
}

func TestResampleKeepsOriginalsVerbatim(t *testing.T) {
	train := imbalancedTrainingSet(t, 20, 60, 2)

	out, err := NewSMOTE(7).Resample(train)
	require.NoError(t, err)

	// The first train.Len() rows are the originals, unchanged and in order.
	for i := 0; i < train.Len(); i++ {
		assert.Equal(t, train.Sample(i), out.Sample(i))
	}
	// Every appended row is synthetic and minority-labeled.
	for i := train.Len(); i < out.Len(); i++ {
		s := out.Sample(i)
		assert.True(t, strings.HasPrefix(s.ID, "synthetic-"), "id %q", s.ID)
		assert.Equal(t, "lobular", s.Label)
	}
}

func TestResampleSyntheticRowsAreConvexCombinations(t *testing.T) {
	train := imbalancedTrainingSet(t, 10, 40, 3)

	out, err := NewSMOTE(5).Resample(train)
	require.NoError(t, err)

	// Minority features cluster around (2, 0, 0); interpolation cannot
	// leave the minority bounding box.
	minFeat := []float64{1e18, 1e18, 1e18}
	maxFeat := []float64{-1e18, -1e18, -1e18}
	for i := 0; i < train.Len(); i++ {
		s := train.Sample(i)
		if s.Label != "lobular" {
			continue
		}
		for j, v := range s.Features {
			minFeat[j] = min(minFeat[j], v)
			maxFeat[j] = max(maxFeat[j], v)
		}
	}
	for i := train.Len(); i < out.Len(); i++ {
		for j, v := range out.Sample(i).Features {
			assert.GreaterOrEqual(t, v, minFeat[j])
			assert.LessOrEqual(t, v, maxFeat[j])
		}
	}
}

func TestResampleDeterminism(t *testing.T) {
	train := imbalancedTrainingSet(t, 15, 50, 4)

	first, err := NewSMOTE(99).Resample(train)
	require.NoError(t, err)
	second, err := NewSMOTE(99).Resample(train)
	require.NoError(t, err)

	require.Equal(t, first.Len(), second.Len())
	for i := 0; i < first.Len(); i++ {
		assert.Equal(t, first.Sample(i), second.Sample(i))
	}

	other, err := NewSMOTE(100).Resample(train)
	require.NoError(t, err)
	different := false
	for i := train.Len(); i < first.Len(); i++ {
		if !assert.ObjectsAreEqual(first.Sample(i).Features, other.Sample(i).Features) {
			different = true
			break
		}
	}
	assert.True(t, different, "different seeds should synthesize different rows")
}

func TestResampleTargetCount(t *testing.T) {
	train := imbalancedTrainingSet(t, 10, 40, 5)

	s := NewSMOTE(1)
	s.TargetCount = 25
	out, err := s.Resample(train)
	require.NoError(t, err)
	assert.Equal(t, [2]int{25, 40}, out.ClassCounts())

	// A target at or below the current count is a no-op.
	s.TargetCount = 10
	out, err = s.Resample(train)
	require.NoError(t, err)
	assert.Equal(t, train.Len(), out.Len())
}

func TestResampleMinorityTooSmall(t *testing.T) {
	train := imbalancedTrainingSet(t, 5, 40, 6)

	_, err := NewSMOTE(1).Resample(train) // k=5 needs at least 6 minority rows
	var dataErr *errors.DataError
	require.ErrorAs(t, err, &dataErr)
}

func TestNearestNeighbors(t *testing.T) {
	rows := [][]float64{
		{0, 0},
		{1, 0},
		{2, 0},
		{10, 0},
	}
	nn := nearestNeighbors(rows, 2)

	assert.Equal(t, []int{1, 2}, nn[0])
	assert.Equal(t, []int{0, 2}, nn[1])
	assert.Equal(t, []int{1, 0}, nn[2])
	assert.Equal(t, []int{2, 1}, nn[3])
}
