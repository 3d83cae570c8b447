package logits

import (
	"math/rand"

	"github.com/SarahQiong/conformal-classification/errors"
)

// Dataset holds one logit vector and one label per example, in original
// dataset order. Once built (or decoded from the cache) it is read-only.
type Dataset struct {
	Logits [][]float32
	Labels []int64
}

// Len returns the number of examples.
func (d *Dataset) Len() int {
	return len(d.Labels)
}

// NumClasses returns the width of the logit vectors, or 0 for an empty dataset.
func (d *Dataset) NumClasses() int {
	if len(d.Logits) == 0 {
		return 0
	}
	return len(d.Logits[0])
}

// Validate checks the dataset's shape invariants: one logit row per label, a
// fixed class dimension across rows, and labels within [0, C).
func (d *Dataset) Validate() error {
	if len(d.Logits) != len(d.Labels) {
		return errors.Errorf("logits/labels length mismatch: %d != %d", len(d.Logits), len(d.Labels))
	}
	c := d.NumClasses()
	for i, row := range d.Logits {
		if len(row) != c {
			return errors.Errorf("row %d has %d classes, expected %d", i, len(row), c)
		}
	}
	for i, label := range d.Labels {
		if label < 0 || label >= int64(c) {
			return errors.Errorf("label %d at row %d outside [0, %d)", label, i, c)
		}
	}
	return nil
}

// Subset returns the dataset restricted to the given example indices. The
// underlying rows are shared, not copied.
func (d *Dataset) Subset(indices []int) *Dataset {
	out := &Dataset{
		Logits: make([][]float32, 0, len(indices)),
		Labels: make([]int64, 0, len(indices)),
	}
	for _, i := range indices {
		out.Logits = append(out.Logits, d.Logits[i])
		out.Labels = append(out.Labels, d.Labels[i])
	}
	return out
}

// Split randomly partitions the dataset into two disjoint subsets of n1 and n2
// examples, e.g. a calibration set and a validation set.
func Split(d *Dataset, n1, n2 int, rng *rand.Rand) (*Dataset, *Dataset, error) {
	if n1 < 0 || n2 < 0 || n1+n2 > d.Len() {
		return nil, nil, errors.Errorf("cannot split %d examples into %d + %d", d.Len(), n1, n2)
	}
	perm := rng.Perm(d.Len())
	return d.Subset(perm[:n1]), d.Subset(perm[n1 : n1+n2]), nil
}
