package imagenet

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// Transform is the fixed preprocessing pipeline applied to every image before
// inference: resize the shortest side, center-crop, scale to [0,1] and
// normalize per channel.
type Transform struct {
	ResizeSide int
	CropSide   int
	Mean       [3]float32
	Std        [3]float32
}

// DefaultTransform returns the standard ImageNet preprocessing: resize shortest
// side to 256, center-crop 224, normalize with the torchvision mean/std triple.
func DefaultTransform() Transform {
	return Transform{
		ResizeSide: 256,
		CropSide:   224,
		Mean:       [3]float32{0.485, 0.456, 0.406},
		Std:        [3]float32{0.229, 0.224, 0.225},
	}
}

// Apply converts an image to a CropSide x CropSide x 3 tensor in HWC order.
func (t Transform) Apply(img image.Image) [][][]float32 {
	img = resizeShortestSide(img, t.ResizeSide)
	img = centerCrop(img, t.CropSide)

	// a zero Std means no normalization for that channel
	for c, s := range t.Std {
		if s == 0 {
			t.Std[c] = 1
		}
	}

	b := img.Bounds()
	out := make([][][]float32, t.CropSide)
	for y := 0; y < t.CropSide; y++ {
		row := make([][]float32, t.CropSide)
		for x := 0; x < t.CropSide; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			px := make([]float32, 3)
			// RGBA returns 16-bit channels
			px[0] = (float32(r)/65535.0 - t.Mean[0]) / t.Std[0]
			px[1] = (float32(g)/65535.0 - t.Mean[1]) / t.Std[1]
			px[2] = (float32(bl)/65535.0 - t.Mean[2]) / t.Std[2]
			row[x] = px
		}
		out[y] = row
	}
	return out
}

func resizeShortestSide(img image.Image, side int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return img
	}

	var nw, nh int
	if w < h {
		nw = side
		nh = h * side / w
	} else {
		nh = side
		nw = w * side / h
	}
	if nw == w && nh == h {
		return img
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}

func centerCrop(img image.Image, side int) image.Image {
	b := img.Bounds()
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2
	crop := image.Rect(x0, y0, x0+side, y0+side)

	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	xdraw.Copy(dst, image.Point{}, img, crop, xdraw.Over, nil)
	return dst
}
