package imagenet

import (
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	// register the decoders for the formats class folders typically contain
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/SarahQiong/conformal-classification/errors"
)

// Example is a single labeled image on disk. The label is the index of the
// class subdirectory the image was discovered under.
type Example struct {
	Path  string
	Label int64
}

// Folder is a class-labeled image dataset discovered from a directory whose
// immediate subdirectories name the classes. Classes are assigned labels in
// sorted order, so discovery is deterministic for a given tree.
type Folder struct {
	Classes  []string
	Examples []Example
}

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

// OpenFolder discovers the class-labeled images under dir.
func OpenFolder(dir string) (*Folder, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading dataset dir %s", dir)
	}

	var classes []string
	for _, e := range entries {
		if e.IsDir() {
			classes = append(classes, e.Name())
		}
	}
	if len(classes) == 0 {
		return nil, errors.Errorf("no class directories found under %s", dir)
	}
	sort.Strings(classes)

	f := &Folder{Classes: classes}
	for label, class := range classes {
		classDir := filepath.Join(dir, class)
		files, err := os.ReadDir(classDir)
		if err != nil {
			return nil, errors.Wrapf(err, "error reading class dir %s", classDir)
		}

		var names []string
		for _, file := range files {
			if file.IsDir() {
				continue
			}
			if !imageExts[strings.ToLower(filepath.Ext(file.Name()))] {
				continue
			}
			names = append(names, file.Name())
		}
		sort.Strings(names)

		for _, name := range names {
			f.Examples = append(f.Examples, Example{
				Path:  filepath.Join(classDir, name),
				Label: int64(label),
			})
		}
	}

	if len(f.Examples) == 0 {
		return nil, errors.Errorf("no images found under %s", dir)
	}
	return f, nil
}

// Len returns the number of examples in the folder.
func (f *Folder) Len() int {
	return len(f.Examples)
}

// Loader iterates a Folder in fixed-size batches of preprocessed images, in
// dataset order.
type Loader struct {
	folder    *Folder
	transform Transform
	batchSize int
	pos       int
}

// NewLoader returns a batched loader over the folder.
func NewLoader(f *Folder, t Transform, batchSize int) *Loader {
	if batchSize <= 0 {
		batchSize = 32
	}
	return &Loader{folder: f, transform: t, batchSize: batchSize}
}

// Len returns the total number of examples the loader will yield.
func (l *Loader) Len() int {
	return l.folder.Len()
}

// Batches returns the number of batches the loader will yield.
func (l *Loader) Batches() int {
	return (l.folder.Len() + l.batchSize - 1) / l.batchSize
}

// Next returns the next batch of preprocessed NHWC images and their labels.
// It returns io.EOF once the dataset is exhausted. Any decode failure aborts
// the pass.
func (l *Loader) Next() ([][][][]float32, []int64, error) {
	if l.pos >= l.folder.Len() {
		return nil, nil, io.EOF
	}

	end := l.pos + l.batchSize
	if end > l.folder.Len() {
		end = l.folder.Len()
	}

	batch := make([][][][]float32, 0, end-l.pos)
	labels := make([]int64, 0, end-l.pos)
	for _, ex := range l.folder.Examples[l.pos:end] {
		img, err := decodeImage(ex.Path)
		if err != nil {
			return nil, nil, err
		}
		batch = append(batch, l.transform.Apply(img))
		labels = append(labels, ex.Label)
	}

	l.pos = end
	return batch, labels, nil
}

// Reset rewinds the loader to the start of the dataset.
func (l *Loader) Reset() {
	l.pos = 0
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening image %s", path)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "error decoding image %s", path)
	}
	return img, nil
}
