package evcompbasic

import (
	"errors"
	"image"
	"image/color"
	"math"

	"gonum.org/v1/gonum/stat"
)

// FloatImage is a planar image with values normalized to [0, 1].
// Channels[c][y*Width+x] holds channel c of pixel (x, y).
type FloatImage struct {
	Width    int
	Height   int
	Channels [][]float64
}

func newFloatImage(w, h, channels int) *FloatImage {
	img := &FloatImage{Width: w, Height: h, Channels: make([][]float64, channels)}
	for c := range img.Channels {
		img.Channels[c] = make([]float64, w*h)
	}
	return img
}

var errNoImage = errors.New("capture has no image")

// ConvertCaptureToPlanes returns the Y, Cb and Cr planes of a capture as
// single channel images. YCbCr frames are read as-is; anything else goes
// through the BT.601 conversion in image/color.
func ConvertCaptureToPlanes(c Capture) ([]*FloatImage, error) {
	if c.Image == nil {
		return nil, errNoImage
	}
	b := c.Image.Bounds()
	w, h := b.Dx(), b.Dy()
	y := newFloatImage(w, h, 1)
	cb := newFloatImage(w, h, 1)
	cr := newFloatImage(w, h, 1)

	ycc, isYCbCr := c.Image.(*image.YCbCr)
	for py := 0; py < h; py++ {
		for px := 0; px < w; px++ {
			var yy, u, v uint8
			if isYCbCr {
				yc := ycc.YCbCrAt(b.Min.X+px, b.Min.Y+py)
				yy, u, v = yc.Y, yc.Cb, yc.Cr
			} else {
				r, g, bl, _ := c.Image.At(b.Min.X+px, b.Min.Y+py).RGBA()
				yy, u, v = color.RGBToYCbCr(uint8(r>>8), uint8(g>>8), uint8(bl>>8))
			}
			i := py*w + px
			y.Channels[0][i] = float64(yy) / 255
			cb.Channels[0][i] = float64(u) / 255
			cr.Channels[0][i] = float64(v) / 255
		}
	}
	return []*FloatImage{y, cb, cr}, nil
}

// ConvertCaptureToRGBImage returns a three channel RGB image of a capture.
func ConvertCaptureToRGBImage(c Capture) (*FloatImage, error) {
	if c.Image == nil {
		return nil, errNoImage
	}
	b := c.Image.Bounds()
	w, h := b.Dx(), b.Dy()
	out := newFloatImage(w, h, 3)
	for py := 0; py < h; py++ {
		for px := 0; px < w; px++ {
			r, g, bl, _ := c.Image.At(b.Min.X+px, b.Min.Y+py).RGBA()
			i := py*w + px
			out.Channels[0][i] = float64(r) / 0xffff
			out.Channels[1][i] = float64(g) / 0xffff
			out.Channels[2][i] = float64(bl) / 0xffff
		}
	}
	return out, nil
}

// ImagePatch crops a patch given in normalized coordinates. The origin is
// rounded up and the size rounded down, so a patch never reads past the
// region it names.
func ImagePatch(img *FloatImage, xNorm, yNorm, wNorm, hNorm float64) *FloatImage {
	x0 := int(math.Ceil(xNorm * float64(img.Width)))
	y0 := int(math.Ceil(yNorm * float64(img.Height)))
	w := int(math.Floor(wNorm * float64(img.Width)))
	h := int(math.Floor(hNorm * float64(img.Height)))
	if x0+w > img.Width {
		w = img.Width - x0
	}
	if y0+h > img.Height {
		h = img.Height - y0
	}
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}

	patch := newFloatImage(w, h, len(img.Channels))
	for c, src := range img.Channels {
		dst := patch.Channels[c]
		for row := 0; row < h; row++ {
			copy(dst[row*w:(row+1)*w], src[(y0+row)*img.Width+x0:(y0+row)*img.Width+x0+w])
		}
	}
	return patch
}

// ImageMeans returns the mean of every channel. An empty image yields NaN
// per channel.
func ImageMeans(img *FloatImage) []float64 {
	means := make([]float64, len(img.Channels))
	for c, ch := range img.Channels {
		if len(ch) == 0 {
			means[c] = math.NaN()
			continue
		}
		means[c] = stat.Mean(ch, nil)
	}
	return means
}
