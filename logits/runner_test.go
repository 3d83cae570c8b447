package logits

import (
	"image"
	"image/color"
	"image/png"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/SarahQiong/conformal-classification/errors"
	"github.com/SarahQiong/conformal-classification/imagenet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClassifier scores each image by its mean brightness, so rows are
// distinguishable and deterministic.
type fakeClassifier struct {
	spec    Spec
	failAt  int
	batches int
}

type Spec = imagenet.Spec

func (f *fakeClassifier) Spec() Spec {
	return f.spec
}

func (f *fakeClassifier) Logits(batch [][][][]float32) ([][]float32, error) {
	f.batches++
	if f.failAt > 0 && f.batches >= f.failAt {
		return nil, errors.New("inference failed")
	}

	out := make([][]float32, len(batch))
	for i, img := range batch {
		var sum float32
		var count int
		for _, row := range img {
			for _, px := range row {
				for _, v := range px {
					sum += v
					count++
				}
			}
		}
		logits := make([]float32, f.spec.NumClasses)
		logits[0] = sum / float32(count)
		out[i] = logits
	}
	return out, nil
}

func writeTestPNG(t *testing.T, path string, gray uint8) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.Gray{Y: gray})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func runnerFolder(t *testing.T) *imagenet.Folder {
	dir, err := ioutil.TempDir("", "runner")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	// two classes, brightness increasing with file order
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "dark"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "light"), 0755))
	writeTestPNG(t, filepath.Join(dir, "dark", "a.png"), 10)
	writeTestPNG(t, filepath.Join(dir, "dark", "b.png"), 40)
	writeTestPNG(t, filepath.Join(dir, "light", "a.png"), 200)
	writeTestPNG(t, filepath.Join(dir, "light", "b.png"), 230)
	writeTestPNG(t, filepath.Join(dir, "light", "c.png"), 250)

	folder, err := imagenet.OpenFolder(dir)
	require.NoError(t, err)
	return folder
}

func TestComputeFillsTableInOrder(t *testing.T) {
	folder := runnerFolder(t)
	tr := imagenet.Transform{ResizeSide: 8, CropSide: 4}
	loader := imagenet.NewLoader(folder, tr, 2)

	clf := &fakeClassifier{spec: Spec{Name: "fake", NumClasses: 3}}
	ds, err := Compute(clf, loader)
	require.NoError(t, err)
	require.NoError(t, ds.Validate())

	assert.Equal(t, 5, ds.Len())
	assert.Equal(t, 3, ds.NumClasses())
	assert.Equal(t, []int64{0, 0, 1, 1, 1}, ds.Labels)

	// brightness increases with dataset order, so class-0 logits do too
	for i := 1; i < ds.Len(); i++ {
		assert.Greater(t, ds.Logits[i][0], ds.Logits[i-1][0])
	}
}

func TestComputeAbortsOnInferenceError(t *testing.T) {
	folder := runnerFolder(t)
	tr := imagenet.Transform{ResizeSide: 8, CropSide: 4}
	loader := imagenet.NewLoader(folder, tr, 2)

	clf := &fakeClassifier{spec: Spec{Name: "fake", NumClasses: 3}, failAt: 2}
	_, err := Compute(clf, loader)
	assert.Error(t, err)
}
