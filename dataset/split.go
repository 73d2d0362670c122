package dataset

import (
	"math"
	"math/rand/v2"

	"github.com/histoml/histoml/pkg/errors"
)

// StratifiedSplitter partitions a Dataset into disjoint train/test/validation
// subsets that preserve the original class proportions within rounding.
// The draw is seeded, so a given (dataset, proportions, seed) triple always
// produces the same partition.
type StratifiedSplitter struct {
	Train      float64
	Test       float64
	Validation float64
	Seed       int64
}

// NewStratifiedSplitter returns a splitter with the default 0.6/0.2/0.2
// proportions.
func NewStratifiedSplitter(seed int64) *StratifiedSplitter {
	return &StratifiedSplitter{Train: 0.6, Test: 0.2, Validation: 0.2, Seed: seed}
}

// Split partitions ds. The union of the three partitions is the input
// dataset exactly once each. It fails with a DataError if any partition
// would contain zero instances of either class.
func (sp *StratifiedSplitter) Split(ds *Dataset) (train, test, validation *Dataset, err error) {
	const op = "StratifiedSplitter.Split"

	if sp.Train <= 0 || sp.Test <= 0 || sp.Validation <= 0 {
		return nil, nil, nil, errors.NewValueError(op, "all proportions must be positive")
	}
	if math.Abs(sp.Train+sp.Test+sp.Validation-1.0) > 1e-9 {
		return nil, nil, nil, errors.NewValueError(op, "proportions must sum to 1.0")
	}

	classes := ds.Classes()
	byClass := map[string][]int{}
	for i := 0; i < ds.Len(); i++ {
		label := ds.samples[i].Label
		byClass[label] = append(byClass[label], i)
	}

	rng := rand.New(rand.NewPCG(uint64(sp.Seed), uint64(sp.Seed)))

	var trainIdx, testIdx, valIdx []int
	for _, class := range classes {
		indices := byClass[class]
		rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})

		n := len(indices)
		nTest := int(math.Round(sp.Test * float64(n)))
		nVal := int(math.Round(sp.Validation * float64(n)))
		nTrain := n - nTest - nVal

		if nTrain < 1 || nTest < 1 || nVal < 1 {
			return nil, nil, nil, errors.NewDataError(op,
				"class "+class+" would leave a partition empty")
		}

		trainIdx = append(trainIdx, indices[:nTrain]...)
		testIdx = append(testIdx, indices[nTrain:nTrain+nTest]...)
		valIdx = append(valIdx, indices[nTrain+nTest:]...)
	}

	return ds.Subset(trainIdx), ds.Subset(testIdx), ds.Subset(valIdx), nil
}
