package imagenet

import (
	"sort"
	"sync"

	"github.com/SarahQiong/conformal-classification/envutil"
	"github.com/SarahQiong/conformal-classification/errors"
	"github.com/SarahQiong/conformal-classification/fileutil"
	"github.com/SarahQiong/conformal-classification/tensorflow"
)

// NumClasses is the output width shared by all registered ImageNet classifiers.
const NumClasses = 1000

// ErrUnsupportedModel is returned by Get for architecture names that have not been registered.
var ErrUnsupportedModel = errors.New("unsupported model")

// Spec describes a frozen pretrained classifier: where its GraphDef lives and
// which ops to feed and fetch.
type Spec struct {
	Name       string
	GraphFile  string
	InputOp    string
	OutputOp   string
	InputSide  int
	ResizeSide int
	NumClasses int
}

var (
	mu       sync.RWMutex
	registry = make(map[string]Spec)

	// Root directory (local or s3://) holding the frozen graphs.
	modelRoot = envutil.GetenvDefault("CONFORMAL_MODELS", "s3://conformal-data/models/imagenet")
)

// SetModelRoot overrides the directory the frozen graphs are loaded from.
func SetModelRoot(root string) {
	mu.Lock()
	defer mu.Unlock()
	modelRoot = root
}

// Register adds a Spec to the registry, replacing any existing entry with the same name.
func Register(s Spec) {
	mu.Lock()
	defer mu.Unlock()
	registry[s.Name] = s
}

// Get returns the Spec registered under name, or ErrUnsupportedModel.
func Get(name string) (Spec, error) {
	mu.RLock()
	defer mu.RUnlock()
	s, ok := registry[name]
	if !ok {
		return Spec{}, errors.Wrapf(ErrUnsupportedModel, "%s", name)
	}
	return s, nil
}

// Names returns the registered architecture names in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	for _, s := range []Spec{
		{Name: "ResNet18", GraphFile: "resnet18_frozen.pb"},
		{Name: "ResNet50", GraphFile: "resnet50_frozen.pb"},
		{Name: "ResNet101", GraphFile: "resnet101_frozen.pb"},
		{Name: "ResNet152", GraphFile: "resnet152_frozen.pb"},
		{Name: "ResNeXt101", GraphFile: "resnext101_32x8d_frozen.pb"},
		{Name: "VGG16", GraphFile: "vgg16_frozen.pb"},
		{Name: "ShuffleNet", GraphFile: "shufflenet_v2_x1_0_frozen.pb"},
		{Name: "Inception", GraphFile: "inception_v3_frozen.pb", InputSide: 299, ResizeSide: 342},
		{Name: "DenseNet161", GraphFile: "densenet161_frozen.pb"},
	} {
		if s.InputOp == "" {
			s.InputOp = "input"
		}
		if s.OutputOp == "" {
			s.OutputOp = "logits"
		}
		if s.InputSide == 0 {
			s.InputSide = 224
		}
		if s.ResizeSide == 0 {
			s.ResizeSide = 256
		}
		if s.NumClasses == 0 {
			s.NumClasses = NumClasses
		}
		Register(s)
	}
}

// GraphPath is the full (local or s3://) path of the frozen GraphDef for this spec.
func (s Spec) GraphPath() string {
	mu.RLock()
	defer mu.RUnlock()
	return fileutil.Join(modelRoot, s.GraphFile)
}

// Transform returns the preprocessing pipeline matching this spec's input geometry.
func (s Spec) Transform() Transform {
	t := DefaultTransform()
	t.ResizeSide = s.ResizeSide
	t.CropSide = s.InputSide
	return t
}

// Load wraps the spec's frozen graph in a Classifier and checks that the
// graph actually exposes the spec's feed and fetch ops, so a misconfigured
// spec fails here rather than on the first forward pass.
func (s Spec) Load() (*Classifier, error) {
	m, err := tensorflow.NewModel(s.GraphPath())
	if err != nil {
		return nil, errors.Wrapf(err, "error loading model %s", s.Name)
	}

	for _, op := range []string{s.InputOp, s.OutputOp} {
		ok, err := m.OpExists(op)
		if err != nil {
			m.Unload()
			return nil, errors.Wrapf(err, "error inspecting graph for %s", s.Name)
		}
		if !ok {
			m.Unload()
			return nil, errors.Errorf("graph for %s has no op %q", s.Name, op)
		}
	}

	return &Classifier{spec: s, model: m}, nil
}

// Classifier runs forward inference on a frozen pretrained architecture.
type Classifier struct {
	spec  Spec
	model *tensorflow.Model
}

// Spec returns the spec the classifier was built from.
func (c *Classifier) Spec() Spec {
	return c.spec
}

// Logits runs a forward pass over a batch of preprocessed NHWC images and
// returns one logit vector per image.
func (c *Classifier) Logits(batch [][][][]float32) ([][]float32, error) {
	feeds := map[string]interface{}{c.spec.InputOp: batch}
	res, err := c.model.Run(feeds, []string{c.spec.OutputOp})
	if err != nil {
		return nil, errors.Wrapf(err, "forward pass failed for %s", c.spec.Name)
	}

	out, ok := res[c.spec.OutputOp].([][]float32)
	if !ok {
		return nil, errors.Errorf("unexpected output type %T from op %s", res[c.spec.OutputOp], c.spec.OutputOp)
	}
	return out, nil
}

// Unload releases the underlying graph and session.
func (c *Classifier) Unload() {
	c.model.Unload()
}
