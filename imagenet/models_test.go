package imagenet

import (
	"sort"
	"testing"

	"github.com/SarahQiong/conformal-classification/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetKnownModels(t *testing.T) {
	for _, name := range []string{
		"ResNet18", "ResNet50", "ResNet101", "ResNet152",
		"ResNeXt101", "VGG16", "ShuffleNet", "Inception", "DenseNet161",
	} {
		s, err := Get(name)
		require.NoError(t, err)
		assert.Equal(t, name, s.Name)
		assert.Equal(t, NumClasses, s.NumClasses)
		assert.NotEmpty(t, s.GraphFile)
	}
}

func TestGetUnsupportedModel(t *testing.T) {
	_, err := Get("AlexNet")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedModel))
}

func TestNamesSorted(t *testing.T) {
	names := Names()
	assert.Len(t, names, 9)
	assert.True(t, sort.StringsAreSorted(names))
}

func TestInceptionGeometry(t *testing.T) {
	s, err := Get("Inception")
	require.NoError(t, err)
	assert.Equal(t, 299, s.InputSide)
	assert.Equal(t, 342, s.ResizeSide)

	tf := s.Transform()
	assert.Equal(t, 299, tf.CropSide)
	assert.Equal(t, 342, tf.ResizeSide)
}

func TestGraphPath(t *testing.T) {
	defer SetModelRoot(modelRoot)
	SetModelRoot("s3://bucket/models")

	s, err := Get("ResNet50")
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/models/resnet50_frozen.pb", s.GraphPath())
}

func TestRegisterExtends(t *testing.T) {
	Register(Spec{
		Name:       "WideResNet50",
		GraphFile:  "wide_resnet50_frozen.pb",
		InputOp:    "input",
		OutputOp:   "logits",
		InputSide:  224,
		ResizeSide: 256,
		NumClasses: NumClasses,
	})
	defer func() {
		mu.Lock()
		delete(registry, "WideResNet50")
		mu.Unlock()
	}()

	s, err := Get("WideResNet50")
	require.NoError(t, err)
	assert.Equal(t, "wide_resnet50_frozen.pb", s.GraphFile)
	assert.Contains(t, Names(), "WideResNet50")
}
