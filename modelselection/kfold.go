// Package modelselection provides cross-validation splitters and the
// hyperparameter sweep runner shared by all model families.
package modelselection

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Fold is a single cross-validation fold.
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// Splitter generates train/test index folds over a dataset.
type Splitter interface {
	Split(X, y mat.Matrix) []Fold
	NSplits() int
}

// KFold is a plain k-fold splitter with an optional seeded shuffle.
type KFold struct {
	K       int
	Shuffle bool
	Seed    int64
}

// NewKFold creates a k-fold splitter; k below 2 falls back to 10, the
// pipeline's default fold count.
func NewKFold(k int, shuffle bool, seed int64) *KFold {
	if k < 2 {
		k = 10
	}
	return &KFold{K: k, Shuffle: shuffle, Seed: seed}
}

// NSplits returns the number of folds.
func (kf *KFold) NSplits() int { return kf.K }

// Split generates train/test indices for each fold.
func (kf *KFold) Split(X, _ mat.Matrix) []Fold {
	nSamples, _ := X.Dims()

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(uint64(kf.Seed), uint64(kf.Seed)))
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([]Fold, kf.K)
	foldSize := nSamples / kf.K
	remainder := nSamples % kf.K

	current := 0
	for i := 0; i < kf.K; i++ {
		testSize := foldSize
		if i < remainder {
			testSize++
		}
		folds[i].TestIndices = append([]int(nil), indices[current:current+testSize]...)
		current += testSize
	}
	fillTrainIndices(folds, nSamples)
	return folds
}

// StratifiedKFold distributes each class evenly across folds so every fold
// preserves the class balance within rounding.
type StratifiedKFold struct {
	K       int
	Shuffle bool
	Seed    int64
}

// NewStratifiedKFold creates a stratified k-fold splitter.
func NewStratifiedKFold(k int, shuffle bool, seed int64) *StratifiedKFold {
	if k < 2 {
		k = 10
	}
	return &StratifiedKFold{K: k, Shuffle: shuffle, Seed: seed}
}

// NSplits returns the number of folds.
func (skf *StratifiedKFold) NSplits() int { return skf.K }

// Split generates stratified train/test indices for each fold.
func (skf *StratifiedKFold) Split(X, y mat.Matrix) []Fold {
	nSamples, _ := X.Dims()

	classIndices := map[float64][]int{}
	var classOrder []float64
	for i := 0; i < nSamples; i++ {
		label := y.At(i, 0)
		if _, seen := classIndices[label]; !seen {
			classOrder = append(classOrder, label)
		}
		classIndices[label] = append(classIndices[label], i)
	}
	sort.Float64s(classOrder)

	if skf.Shuffle {
		r := rand.New(rand.NewPCG(uint64(skf.Seed), uint64(skf.Seed)))
		for _, label := range classOrder {
			indices := classIndices[label]
			r.Shuffle(len(indices), func(i, j int) {
				indices[i], indices[j] = indices[j], indices[i]
			})
		}
	}

	folds := make([]Fold, skf.K)
	for _, label := range classOrder {
		indices := classIndices[label]
		nClass := len(indices)
		foldSize := nClass / skf.K
		remainder := nClass % skf.K

		current := 0
		for i := 0; i < skf.K; i++ {
			testSize := foldSize
			if i < remainder {
				testSize++
			}
			folds[i].TestIndices = append(folds[i].TestIndices, indices[current:current+testSize]...)
			current += testSize
		}
	}
	fillTrainIndices(folds, nSamples)
	return folds
}

func fillTrainIndices(folds []Fold, nSamples int) {
	for i := range folds {
		inTest := make(map[int]bool, len(folds[i].TestIndices))
		for _, idx := range folds[i].TestIndices {
			inTest[idx] = true
		}
		for j := 0; j < nSamples; j++ {
			if !inTest[j] {
				folds[i].TrainIndices = append(folds[i].TrainIndices, j)
			}
		}
	}
}

// Subset extracts the rows of X and y at the given indices, sorted so the
// result is independent of fold construction order.
func Subset(X, y mat.Matrix, indices []int) (*mat.Dense, *mat.Dense) {
	sorted := append([]int(nil), indices...)
	sort.Ints(sorted)

	_, xCols := X.Dims()
	_, yCols := y.Dims()
	xSub := mat.NewDense(len(sorted), xCols, nil)
	ySub := mat.NewDense(len(sorted), yCols, nil)
	for i, idx := range sorted {
		for j := 0; j < xCols; j++ {
			xSub.Set(i, j, X.At(idx, j))
		}
		for j := 0; j < yCols; j++ {
			ySub.Set(i, j, y.At(idx, j))
		}
	}
	return xSub, ySub
}
