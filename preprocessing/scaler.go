// Package preprocessing implements the outlier-robust normalization stage:
// per-column z-scoring followed by median replacement of extreme values.
package preprocessing

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/histoml/histoml/core/model"
	"github.com/histoml/histoml/pkg/errors"
)

// ZScoreCutoff is the absolute z-score beyond which a value is treated as an
// outlier and replaced by the column median.
const ZScoreCutoff = 3.0

// RobustScaler z-scores each column and replaces any value whose absolute
// z-score exceeds ZScoreCutoff with the column's median, where the median is
// computed post-scaling and pre-replacement over all fitted rows.
//
// Column statistics are computed once in Fit and reused verbatim by every
// later Transform, so transforming the same data twice yields identical
// output. Per the pipeline's documented protocol the scaler is fit on the
// full pre-split matrix.
type RobustScaler struct {
	state *model.StateManager

	// Mean and Scale are the per-column mean and standard deviation.
	Mean  []float64
	Scale []float64

	// Median is the per-column median of the z-scored values.
	Median []float64

	// Columns optionally names the feature columns for error reporting.
	Columns []string
}

// NewRobustScaler creates an unfitted RobustScaler. Column names are
// optional; when present they label DataErrors with the offending gene.
func NewRobustScaler(columns []string) *RobustScaler {
	return &RobustScaler{
		state:   model.NewStateManager(),
		Columns: columns,
	}
}

// Fit computes the per-column mean, standard deviation, and post-scaling
// median. It fails with a DataError on empty input, non-finite values, or a
// zero-variance column.
func (s *RobustScaler) Fit(X mat.Matrix) error {
	const op = "RobustScaler.Fit"

	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewDataError(op, "empty data")
	}

	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)
	s.Median = make([]float64, c)

	col := make([]float64, r)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			v := X.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.NewColumnDataError(op, s.columnName(j), "non-finite value")
			}
			col[i] = v
		}

		mean, std := stat.MeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			return errors.NewColumnDataError(op, s.columnName(j), "zero variance")
		}
		s.Mean[j] = mean
		s.Scale[j] = std

		// Median of the z-scored column, before any replacement.
		scaled := make([]float64, r)
		for i := 0; i < r; i++ {
			scaled[i] = (col[i] - mean) / std
		}
		sort.Float64s(scaled)
		s.Median[j] = stat.Quantile(0.5, stat.Empirical, scaled, nil)
	}

	s.state.SetDimensions(c, r)
	s.state.SetFitted()
	return nil
}

// Transform z-scores X with the fitted statistics and caps outliers at the
// stored column medians. New data (held-out rows) goes through the same
// statistics, never recomputed per partition.
func (s *RobustScaler) Transform(X mat.Matrix) (*mat.Dense, error) {
	const op = "RobustScaler.Transform"

	if !s.state.IsFitted() {
		return nil, errors.NewNotFittedError("RobustScaler", "Transform")
	}

	r, c := X.Dims()
	nFeatures, _ := s.state.GetDimensions()
	if c != nFeatures {
		return nil, errors.NewDimensionError(op, nFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := X.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.NewColumnDataError(op, s.columnName(j), "non-finite value")
			}
			z := (v - s.Mean[j]) / s.Scale[j]
			if math.Abs(z) > ZScoreCutoff {
				z = s.Median[j]
			}
			result.Set(i, j, z)
		}
	}
	return result, nil
}

// FitTransform fits the scaler on X and transforms the same data.
func (s *RobustScaler) FitTransform(X mat.Matrix) (*mat.Dense, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// IsFitted reports whether Fit has completed.
func (s *RobustScaler) IsFitted() bool { return s.state.IsFitted() }

func (s *RobustScaler) columnName(j int) string {
	if j < len(s.Columns) {
		return s.Columns[j]
	}
	return fmt.Sprintf("%d", j)
}
