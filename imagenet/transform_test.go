package imagenet

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func solidImage(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestApplyShape(t *testing.T) {
	out := DefaultTransform().Apply(solidImage(100, 80, color.Gray{Y: 128}))
	assert.Len(t, out, 224)
	for _, row := range out {
		assert.Len(t, row, 224)
		for _, px := range row {
			assert.Len(t, px, 3)
		}
	}
}

func TestApplyNormalization(t *testing.T) {
	tr := DefaultTransform()
	out := tr.Apply(solidImage(300, 400, color.RGBA{R: 128, G: 128, B: 128, A: 255}))

	// a solid image stays solid through resize and crop
	val := float64(128) / 255.0
	for c := 0; c < 3; c++ {
		want := (val - float64(tr.Mean[c])) / float64(tr.Std[c])
		assert.InDelta(t, want, float64(out[0][0][c]), 0.02)
		assert.InDelta(t, want, float64(out[112][112][c]), 0.02)
		assert.InDelta(t, want, float64(out[223][223][c]), 0.02)
	}
}

func TestApplySmallerGeometry(t *testing.T) {
	tr := Transform{ResizeSide: 8, CropSide: 4}
	out := tr.Apply(solidImage(32, 16, color.White))
	assert.Len(t, out, 4)
	assert.Len(t, out[0], 4)
}

func TestResizeShortestSide(t *testing.T) {
	img := resizeShortestSide(solidImage(100, 80, color.Black), 256)
	assert.Equal(t, 320, img.Bounds().Dx())
	assert.Equal(t, 256, img.Bounds().Dy())

	img = resizeShortestSide(solidImage(80, 100, color.Black), 256)
	assert.Equal(t, 256, img.Bounds().Dx())
	assert.Equal(t, 320, img.Bounds().Dy())
}
