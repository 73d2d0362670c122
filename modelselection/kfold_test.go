package modelselection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func labeledData(nClass0, nClass1 int) (*mat.Dense, *mat.Dense) {
	n := nClass0 + nClass1
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i)*2)
		if i >= nClass0 {
			y.Set(i, 0, 1)
		}
	}
	return X, y
}

func checkPartition(t *testing.T, folds []Fold, nSamples int) {
	t.Helper()
	for fi, fold := range folds {
		seen := map[int]bool{}
		for _, idx := range fold.TestIndices {
			assert.False(t, seen[idx], "fold %d repeats test index %d", fi, idx)
			seen[idx] = true
		}
		for _, idx := range fold.TrainIndices {
			assert.False(t, seen[idx], "fold %d has %d in both partitions", fi, idx)
			seen[idx] = true
		}
		assert.Len(t, seen, nSamples, "fold %d does not cover the data", fi)
	}

	// Every sample lands in exactly one test fold.
	testCount := map[int]int{}
	for _, fold := range folds {
		for _, idx := range fold.TestIndices {
			testCount[idx]++
		}
	}
	require.Len(t, testCount, nSamples)
	for idx, n := range testCount {
		assert.Equal(t, 1, n, "sample %d tested %d times", idx, n)
	}
}

func TestKFoldSplit(t *testing.T) {
	X, y := labeledData(13, 10)
	kf := NewKFold(5, false, 0)
	folds := kf.Split(X, y)

	require.Len(t, folds, 5)
	checkPartition(t, folds, 23)

	// 23 = 5+5+5+4+4: the remainder spreads over the leading folds.
	sizes := []int{}
	for _, fold := range folds {
		sizes = append(sizes, len(fold.TestIndices))
	}
	assert.Equal(t, []int{5, 5, 5, 4, 4}, sizes)
}

func TestKFoldDefault(t *testing.T) {
	assert.Equal(t, 10, NewKFold(0, false, 0).NSplits())
	assert.Equal(t, 10, NewKFold(1, true, 3).NSplits())
}

func TestKFoldShuffleDeterminism(t *testing.T) {
	X, y := labeledData(20, 20)

	a := NewKFold(4, true, 11).Split(X, y)
	b := NewKFold(4, true, 11).Split(X, y)
	assert.Equal(t, a, b, "same seed, same folds")

	c := NewKFold(4, true, 12).Split(X, y)
	assert.NotEqual(t, a, c, "different seed, different folds")
}

func TestStratifiedKFoldSplit(t *testing.T) {
	X, y := labeledData(30, 10)
	skf := NewStratifiedKFold(5, true, 3)
	folds := skf.Split(X, y)

	require.Len(t, folds, 5)
	checkPartition(t, folds, 40)

	// 30/5 and 10/5 divide evenly, so every fold holds 6 + 2 test rows.
	for fi, fold := range folds {
		zeros, ones := 0, 0
		for _, idx := range fold.TestIndices {
			if y.At(idx, 0) == 0 {
				zeros++
			} else {
				ones++
			}
		}
		assert.Equal(t, 6, zeros, "fold %d class-0 count", fi)
		assert.Equal(t, 2, ones, "fold %d class-1 count", fi)
	}
}

func TestSubset(t *testing.T) {
	X, y := labeledData(3, 3)
	xSub, ySub := Subset(X, y, []int{4, 1, 5})

	r, c := xSub.Dims()
	require.Equal(t, 3, r)
	require.Equal(t, 2, c)

	// Rows come out in sorted index order regardless of input order.
	assert.Equal(t, 1.0, xSub.At(0, 0))
	assert.Equal(t, 4.0, xSub.At(1, 0))
	assert.Equal(t, 5.0, xSub.At(2, 0))
	assert.Equal(t, 0.0, ySub.At(0, 0))
	assert.Equal(t, 1.0, ySub.At(1, 0))
	assert.Equal(t, 1.0, ySub.At(2, 0))
}
