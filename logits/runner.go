package logits

import (
	"io"
	"log"

	"github.com/SarahQiong/conformal-classification/errors"
	"github.com/SarahQiong/conformal-classification/imagenet"
	"github.com/SarahQiong/conformal-classification/metrics"
	"github.com/sbwhitecap/tqdm"
	"github.com/sbwhitecap/tqdm/iterators"
)

// Classifier is the slice of imagenet.Classifier the runner needs.
type Classifier interface {
	Spec() imagenet.Spec
	Logits(batch [][][][]float32) ([][]float32, error)
}

// Compute runs forward inference over the full loader and accumulates one
// logit row and one label per example, in dataset order. Any inference or
// decode error aborts the whole pass.
func Compute(clf Classifier, loader *imagenet.Loader) (*Dataset, error) {
	n := loader.Len()
	c := clf.Spec().NumClasses

	ds := &Dataset{
		Logits: make([][]float32, n),
		Labels: make([]int64, n),
	}

	batchTime := metrics.NewMeter("batch", "%.3fs")

	var cursor int
	var runErr error
	err := tqdm.With(iterators.Interval(0, loader.Batches()), "Computing logits", func(interface{}) (brk bool) {
		batch, labels, err := loader.Next()
		if err == io.EOF {
			return true
		}
		if err != nil {
			runErr = err
			return true
		}

		stop := batchTime.Time()
		out, err := clf.Logits(batch)
		stop()
		if err != nil {
			runErr = err
			return true
		}
		if len(out) != len(labels) {
			runErr = errors.Errorf("model returned %d rows for a batch of %d", len(out), len(labels))
			return true
		}

		for i, row := range out {
			if len(row) != c {
				runErr = errors.Errorf("model returned %d classes, expected %d", len(row), c)
				return true
			}
			ds.Logits[cursor+i] = row
			ds.Labels[cursor+i] = labels[i]
		}
		cursor += len(labels)
		return false
	})
	if err != nil {
		return nil, errors.Wrapf(err, "progress iteration failed")
	}
	if runErr != nil {
		return nil, runErr
	}
	if cursor != n {
		return nil, errors.Errorf("inference pass produced %d rows, expected %d", cursor, n)
	}

	log.Printf("computed logits for %d examples, %s per batch", n, batchTime)
	return ds, nil
}
