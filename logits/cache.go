package logits

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/SarahQiong/conformal-classification/awsutil"
	"github.com/SarahQiong/conformal-classification/envutil"
	"github.com/SarahQiong/conformal-classification/errors"
	"github.com/SarahQiong/conformal-classification/fileutil"
	"github.com/SarahQiong/conformal-classification/imagenet"
	"github.com/SarahQiong/conformal-classification/serialization"
)

const entryExt = ".gob.gz"

// ErrNotCached is returned by Store.Get when no entry exists for the key.
var ErrNotCached = errors.New("no cache entry for key")

// ErrCorruptEntry is returned by Store.Get when an entry exists but cannot be
// decoded or fails validation. Callers typically treat it as a miss and
// recompute.
var ErrCorruptEntry = errors.New("cache entry is corrupt")

// Key identifies a cache entry: the logits of one model over one dataset.
type Key struct {
	Dataset string
	Model   string
}

// Store persists computed logit datasets under a root directory, which may be
// a local path or an s3:// prefix. Entries are written once and read-only
// thereafter.
type Store struct {
	Root string
}

// DefaultCacheRoot returns the cache root to use when none is configured.
func DefaultCacheRoot() string {
	return envutil.GetenvDefault("CONFORMAL_CACHE", "experiments/.cache")
}

// Path returns the location of the entry for the given key.
func (s Store) Path(k Key) string {
	return fileutil.Join(s.Root, k.Dataset, k.Model+entryExt)
}

// Get returns the cached dataset for the key. A missing entry yields
// ErrNotCached; an unreadable or invalid entry yields ErrCorruptEntry.
func (s Store) Get(k Key) (*Dataset, error) {
	path := s.Path(k)
	var ds Dataset
	if err := serialization.Decode(path, &ds); err != nil {
		if !fileutil.Exists(path) {
			return nil, errors.Wrapf(ErrNotCached, "%s/%s", k.Dataset, k.Model)
		}
		return nil, errors.Wrapf(ErrCorruptEntry, "%s: %v", path, err)
	}
	if err := ds.Validate(); err != nil {
		return nil, errors.Wrapf(ErrCorruptEntry, "%s: %v", path, err)
	}
	return &ds, nil
}

// Put persists the dataset under the key. Local entries are written to a
// uniquely named temporary file and renamed into place, so a failed write
// never leaves a partial entry and concurrent populators cannot interleave;
// S3 writes are buffered locally and uploaded whole.
func (s Store) Put(k Key, ds *Dataset) error {
	if err := ds.Validate(); err != nil {
		return errors.Wrapf(err, "refusing to cache invalid dataset")
	}

	path := s.Path(k)
	if awsutil.IsS3URI(path) {
		return serialization.Encode(path, ds)
	}

	dir := filepath.Join(s.Root, k.Dataset)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "error creating cache dir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, k.Model+".partial-*"+entryExt)
	if err != nil {
		return errors.Wrapf(err, "error creating cache temp file")
	}
	tmp.Close()

	if err := serialization.Encode(tmp.Name(), ds); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "error writing cache entry %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "error moving cache entry into place")
	}
	return nil
}

// List returns the names of the models with a cached entry for the dataset,
// in sorted order. A dataset with no entries yields an empty list.
func (s Store) List(dataset string) ([]string, error) {
	dir := fileutil.Join(s.Root, dataset)
	if !fileutil.Exists(dir) {
		return nil, nil
	}

	paths, err := fileutil.ListDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "error listing cache entries for %s", dataset)
	}

	var models []string
	for _, p := range paths {
		name := filepath.Base(p)
		if !strings.HasSuffix(name, entryExt) || strings.Contains(name, ".partial-") {
			continue
		}
		models = append(models, strings.TrimSuffix(name, entryExt))
	}
	sort.Strings(models)
	return models, nil
}

// Options configure a cache-filling inference pass.
type Options struct {
	BatchSize int
}

// GetOrCompute returns the logits of the named pretrained model over the
// dataset at datasetPath, computing and caching them on first request.
// Subsequent calls with the same key read the persisted entry; a corrupt
// entry is recomputed in place.
func GetOrCompute(store Store, modelName, datasetName, datasetPath string, opts Options) (*Dataset, error) {
	key := Key{Dataset: datasetName, Model: modelName}

	ds, err := store.Get(key)
	if err == nil {
		return ds, nil
	}
	if !errors.Is(err, ErrNotCached) && !errors.Is(err, ErrCorruptEntry) {
		return nil, err
	}
	if errors.Is(err, ErrCorruptEntry) {
		log.Printf("recomputing: %v", err)
	}

	spec, err := imagenet.Get(modelName)
	if err != nil {
		return nil, err
	}

	clf, err := spec.Load()
	if err != nil {
		return nil, err
	}
	defer clf.Unload()

	folder, err := imagenet.OpenFolder(datasetPath)
	if err != nil {
		return nil, err
	}

	loader := imagenet.NewLoader(folder, spec.Transform(), opts.BatchSize)
	ds, err = Compute(clf, loader)
	if err != nil {
		return nil, err
	}

	if err := store.Put(key, ds); err != nil {
		return nil, err
	}
	return ds, nil
}
