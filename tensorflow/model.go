package tensorflow

import (
	"io/ioutil"

	"github.com/SarahQiong/conformal-classification/errors"
	"github.com/SarahQiong/conformal-classification/fileutil"
	"github.com/SarahQiong/conformal-classification/lazy"
	tf "github.com/kiteco/tensorflow/tensorflow/go"
)

// Model wraps a Tensorflow model
type Model struct {
	*lazy.Loader
	session *tf.Session
	graph   *tf.Graph
}

// sized is implemented by readers that know their total length up front
type sized interface {
	Len() int64
}

// NewModel loads a Tensorflow model (serialized as a GraphDef proto, frozen to replace
// variables with constants) from the given local/S3 path. Tensorflow's freeze_graph
// utility saves models in this format.
func NewModel(path string) (*Model, error) {
	m := &Model{}

	load := func() error {
		r, err := fileutil.NewCachedReader(path)
		if err != nil {
			return err
		}
		defer r.Close()

		graph := tf.NewGraph()
		if s, _ := r.(sized); s != nil {
			err = graph.ImportFromReader(r, int(s.Len()), "")
		} else {
			var data []byte
			data, err = ioutil.ReadAll(r)
			if err != nil {
				return errors.Wrapf(err, "error reading graph definition")
			}
			err = graph.Import(data, "")
		}
		if err != nil {
			return errors.Wrapf(err, "error importing graph")
		}

		sess, err := tf.NewSession(graph, nil)
		if err != nil {
			graph.Delete()
			return errors.Wrapf(err, "error creating session")
		}

		m.graph = graph
		m.session = sess
		return nil
	}

	unload := func() {
		if m.session != nil {
			m.session.Close()
		}
		if m.graph != nil {
			m.graph.Delete()
		}
		m.session = nil
		m.graph = nil
	}

	m.Loader = lazy.NewLoader(load, unload)

	return m, nil
}

// Unload the model
func (m *Model) Unload() {
	m.Loader.Unload()
}

// OpExists reports whether the graph contains an operation with the given name.
func (m *Model) OpExists(name string) (bool, error) {
	err := m.Loader.LoadAndLock()
	if err != nil {
		return false, err
	}
	defer m.Loader.Unlock()
	for _, op := range m.graph.Operations() {
		if op.Name() == name {
			return true, nil
		}
	}
	return false, nil
}

// Run takes in a map of feed tensors, keyed by the operation names, as well as a slice of operations to fetch.
// As output, it returns a map of output operation names to the resulting output tensors.
func (m *Model) Run(feeds map[string]interface{}, fetches []string) (map[string]interface{}, error) {
	err := m.Loader.LoadAndLock()
	if err != nil {
		return nil, err
	}
	defer m.Loader.Unlock()

	tfFeeds := make(map[tf.Output]*tf.Tensor)

	for op, val := range feeds {
		out, err := m.tfOut(op)
		if err != nil {
			return nil, err
		}
		tensor, err := tf.NewTensor(val)
		if err != nil {
			return nil, errors.Wrapf(err, "error creating tensor")
		}
		tfFeeds[out] = tensor
	}

	// Cleanup tensors
	defer func() {
		for _, t := range tfFeeds {
			t.Delete()
		}
	}()

	var tfFetches []tf.Output
	for _, op := range fetches {
		out, err := m.tfOut(op)
		if err != nil {
			return nil, err
		}
		tfFetches = append(tfFetches, out)
	}

	return runTF(func() ([]*tf.Tensor, error) {
		return m.session.Run(tfFeeds, tfFetches, nil)
	}, fetches)
}

func (m *Model) tfOut(opName string) (tf.Output, error) {
	op := m.graph.Operation(opName)
	if op == nil {
		return tf.Output{}, errors.Errorf("could not find op with name: %s", opName)
	}

	return tf.Output{
		Op:    op,
		Index: 0,
	}, nil
}

func runTF(run func() ([]*tf.Tensor, error), fetches []string) (map[string]interface{}, error) {
	res, err := run()
	if err != nil {
		return nil, errors.Wrapf(err, "error running model")
	}

	// Cleanup tensors
	defer func() {
		for _, t := range res {
			t.Delete()
		}
	}()

	out := make(map[string]interface{})
	for i, op := range fetches {
		out[op] = res[i].Value()
	}

	return out, nil
}
