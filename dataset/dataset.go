// Package dataset defines the fixed-schema tabular data model the pipeline
// operates on: samples keyed by id, an ordered gene-expression feature
// vector per sample, and a two-class label domain.
package dataset

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/histoml/histoml/pkg/errors"
)

// Sample is one row: a sample identifier, its gene-expression vector in the
// dataset's gene order, and its histological subtype label.
type Sample struct {
	ID       string
	Features []float64
	Label    string
}

// Dataset is an ordered collection of samples sharing one feature schema and
// one two-element label domain. The first class is the minority class and
// the AUC-positive orientation. Datasets are immutable once built; every
// transformation returns a new Dataset.
type Dataset struct {
	genes   []string
	classes [2]string
	samples []Sample
}

// New validates the schema and builds a Dataset. Every sample must carry a
// feature vector of len(genes) finite values and a label inside the class
// domain.
func New(genes []string, classes [2]string, samples []Sample) (*Dataset, error) {
	const op = "dataset.New"
	if len(genes) == 0 {
		return nil, errors.NewDataError(op, "empty feature schema")
	}
	if classes[0] == classes[1] {
		return nil, errors.NewDataError(op, "class domain must contain two distinct labels")
	}
	for _, s := range samples {
		if len(s.Features) != len(genes) {
			return nil, errors.NewDataError(op,
				"sample "+s.ID+": feature vector length differs from schema")
		}
		if s.Label != classes[0] && s.Label != classes[1] {
			return nil, errors.NewDataError(op,
				"sample "+s.ID+": label "+s.Label+" outside class domain")
		}
		for j, v := range s.Features {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.NewColumnDataError(op, genes[j],
					"sample "+s.ID+": non-finite value")
			}
		}
	}

	ds := &Dataset{
		genes:   append([]string(nil), genes...),
		classes: classes,
		samples: make([]Sample, len(samples)),
	}
	for i, s := range samples {
		ds.samples[i] = Sample{
			ID:       s.ID,
			Features: append([]float64(nil), s.Features...),
			Label:    s.Label,
		}
	}
	return ds, nil
}

// Len returns the number of samples.
func (d *Dataset) Len() int { return len(d.samples) }

// Genes returns the feature schema in column order.
func (d *Dataset) Genes() []string { return append([]string(nil), d.genes...) }

// Classes returns the label domain. Index 0 is the minority/positive class.
func (d *Dataset) Classes() [2]string { return d.classes }

// Sample returns a copy of the i-th sample.
func (d *Dataset) Sample(i int) Sample {
	s := d.samples[i]
	return Sample{ID: s.ID, Features: append([]float64(nil), s.Features...), Label: s.Label}
}

// X returns the feature matrix, one row per sample in dataset order.
func (d *Dataset) X() *mat.Dense {
	n, p := len(d.samples), len(d.genes)
	m := mat.NewDense(n, p, nil)
	for i, s := range d.samples {
		m.SetRow(i, s.Features)
	}
	return m
}

// Y returns the labels as a one-column matrix of class indices: 0 for the
// first class, 1 for the second. This encoding is fixed across the pipeline.
func (d *Dataset) Y() *mat.Dense {
	m := mat.NewDense(len(d.samples), 1, nil)
	for i, s := range d.samples {
		if s.Label == d.classes[1] {
			m.Set(i, 0, 1)
		}
	}
	return m
}

// ClassCounts returns the per-class sample counts in class-domain order.
func (d *Dataset) ClassCounts() [2]int {
	var counts [2]int
	for _, s := range d.samples {
		if s.Label == d.classes[0] {
			counts[0]++
		} else {
			counts[1]++
		}
	}
	return counts
}

// MinorityClass returns the label with the fewer samples, preferring the
// first class on a tie (the domain's declared minority).
func (d *Dataset) MinorityClass() string {
	counts := d.ClassCounts()
	if counts[1] < counts[0] {
		return d.classes[1]
	}
	return d.classes[0]
}

// Subset returns a new Dataset containing the rows at the given indices, in
// the given order.
func (d *Dataset) Subset(indices []int) *Dataset {
	sub := &Dataset{
		genes:   d.genes,
		classes: d.classes,
		samples: make([]Sample, len(indices)),
	}
	for i, idx := range indices {
		sub.samples[i] = d.samples[idx]
	}
	return sub
}

// WithFeatures returns a new Dataset with the same ids, labels, and schema
// but the given feature matrix. The pipeline uses it to re-wrap the scaler's
// output.
func (d *Dataset) WithFeatures(X mat.Matrix) (*Dataset, error) {
	const op = "Dataset.WithFeatures"
	r, c := X.Dims()
	if r != len(d.samples) {
		return nil, errors.NewDimensionError(op, len(d.samples), r, 0)
	}
	if c != len(d.genes) {
		return nil, errors.NewDimensionError(op, len(d.genes), c, 1)
	}

	out := &Dataset{
		genes:   d.genes,
		classes: d.classes,
		samples: make([]Sample, len(d.samples)),
	}
	for i, s := range d.samples {
		row := make([]float64, c)
		for j := 0; j < c; j++ {
			row[j] = X.At(i, j)
		}
		out.samples[i] = Sample{ID: s.ID, Features: row, Label: s.Label}
	}
	return out, nil
}

// IDs returns the sample identifiers in dataset order.
func (d *Dataset) IDs() []string {
	ids := make([]string, len(d.samples))
	for i, s := range d.samples {
		ids[i] = s.ID
	}
	return ids
}
