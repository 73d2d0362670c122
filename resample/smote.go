// Package resample implements synthetic minority oversampling (SMOTE) for
// the training partition. Original rows always pass through unchanged;
// synthetic rows are appended after them.
package resample

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/histoml/histoml/dataset"
	"github.com/histoml/histoml/pkg/errors"
)

// SMOTE synthesizes minority-class feature vectors by interpolating between
// a minority sample and one of its k nearest minority neighbors at a random
// fraction in [0, 1). The draw is seeded for full reproducibility.
type SMOTE struct {
	// K is the neighbor count used for interpolation. Default 5.
	K int

	// TargetCount is the desired minority count after oversampling.
	// Zero means "match the majority count".
	TargetCount int

	// Seed drives neighbor choice and interpolation fractions.
	Seed int64
}

// NewSMOTE returns a SMOTE resampler with k=5 and the match-majority target.
func NewSMOTE(seed int64) *SMOTE {
	return &SMOTE{K: 5, Seed: seed}
}

// Resample returns a new training set with synthetic minority rows appended.
// It fails with a DataError if the minority class has fewer than k+1 samples,
// since no neighbor set can be formed.
func (s *SMOTE) Resample(train *dataset.Dataset) (*dataset.Dataset, error) {
	const op = "SMOTE.Resample"

	k := s.K
	if k <= 0 {
		k = 5
	}

	counts := train.ClassCounts()
	minority := train.MinorityClass()
	classes := train.Classes()

	minorityCount, majorityCount := counts[0], counts[1]
	if minority == classes[1] {
		minorityCount, majorityCount = counts[1], counts[0]
	}

	if minorityCount < k+1 {
		return nil, errors.NewDataError(op, fmt.Sprintf(
			"minority class %q has %d samples, need at least k+1=%d to form a neighbor set",
			minority, minorityCount, k+1))
	}

	target := s.TargetCount
	if target <= 0 {
		target = majorityCount
	}
	nSynthetic := target - minorityCount
	if nSynthetic <= 0 {
		return train, nil
	}

	// Collect minority feature vectors in training order.
	var minorityRows [][]float64
	for i := 0; i < train.Len(); i++ {
		sm := train.Sample(i)
		if sm.Label == minority {
			minorityRows = append(minorityRows, sm.Features)
		}
	}

	neighbors := nearestNeighbors(minorityRows, k)
	rng := rand.New(rand.NewPCG(uint64(s.Seed), uint64(s.Seed)))

	genes := train.Genes()
	samples := make([]dataset.Sample, 0, train.Len()+nSynthetic)
	for i := 0; i < train.Len(); i++ {
		samples = append(samples, train.Sample(i))
	}

	for n := 0; n < nSynthetic; n++ {
		// Cycle through minority samples so synthesis spreads evenly.
		base := n % len(minorityRows)
		neighbor := neighbors[base][rng.IntN(k)]
		frac := rng.Float64()

		row := make([]float64, len(genes))
		// base + frac * (neighbor - base)
		copy(row, minorityRows[neighbor])
		floats.Sub(row, minorityRows[base])
		floats.Scale(frac, row)
		floats.Add(row, minorityRows[base])

		samples = append(samples, dataset.Sample{
			ID:       fmt.Sprintf("synthetic-%d", n),
			Features: row,
			Label:    minority,
		})
	}

	return dataset.New(genes, classes, samples)
}

// nearestNeighbors returns, for each row, the indices of its k nearest other
// rows by Euclidean distance, nearest first. Distance ties keep the lower
// index first so results are order-stable.
func nearestNeighbors(rows [][]float64, k int) [][]int {
	type entry struct {
		idx  int
		dist float64
	}

	out := make([][]int, len(rows))
	for i := range rows {
		entries := make([]entry, 0, len(rows)-1)
		for j := range rows {
			if j == i {
				continue
			}
			entries = append(entries, entry{idx: j, dist: sqDistance(rows[i], rows[j])})
		}
		sort.SliceStable(entries, func(a, b int) bool {
			if entries[a].dist != entries[b].dist {
				return entries[a].dist < entries[b].dist
			}
			return entries[a].idx < entries[b].idx
		})

		nn := make([]int, k)
		for n := 0; n < k; n++ {
			nn[n] = entries[n].idx
		}
		out[i] = nn
	}
	return out
}

// sqDistance is the squared Euclidean distance; square roots are not needed
// for ranking neighbors.
func sqDistance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
