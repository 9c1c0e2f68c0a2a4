package evcompbasic

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func uniformYCbCr(w, h int, y, cb, cr uint8) *image.YCbCr {
	img := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio444)
	for i := range img.Y {
		img.Y[i] = y
	}
	for i := range img.Cb {
		img.Cb[i] = cb
		img.Cr[i] = cr
	}
	return img
}

func TestConvertCaptureToPlanes(t *testing.T) {
	t.Run("reads Y straight from YCbCr frames", func(t *testing.T) {
		planes, err := ConvertCaptureToPlanes(Capture{Image: uniformYCbCr(8, 6, 51, 128, 128)})
		if err != nil {
			t.Fatalf("ConvertCaptureToPlanes failed: %v", err)
		}
		if len(planes) != 3 {
			t.Fatalf("expected 3 planes, got %d", len(planes))
		}
		if planes[0].Width != 8 || planes[0].Height != 6 {
			t.Errorf("plane size = %dx%d, want 8x6", planes[0].Width, planes[0].Height)
		}
		if got := planes[0].Channels[0][0]; got != 51.0/255 {
			t.Errorf("Y = %v, want %v", got, 51.0/255)
		}
	})

	t.Run("grey RGB maps to the same luma", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(0, 0, 4, 4))
		for i := 0; i < 16; i++ {
			img.Set(i%4, i/4, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
		planes, err := ConvertCaptureToPlanes(Capture{Image: img})
		if err != nil {
			t.Fatalf("ConvertCaptureToPlanes failed: %v", err)
		}
		if got := planes[0].Channels[0][5]; got != 200.0/255 {
			t.Errorf("Y = %v, want %v", got, 200.0/255)
		}
	})

	t.Run("missing image", func(t *testing.T) {
		if _, err := ConvertCaptureToPlanes(Capture{}); err == nil {
			t.Error("expected error for capture without image")
		}
	})
}

func TestConvertCaptureToRGBImage(t *testing.T) {
	rgb, err := ConvertCaptureToRGBImage(Capture{Image: uniformYCbCr(4, 4, 255, 128, 128)})
	if err != nil {
		t.Fatalf("ConvertCaptureToRGBImage failed: %v", err)
	}
	if len(rgb.Channels) != 3 {
		t.Fatalf("expected 3 channels, got %d", len(rgb.Channels))
	}
	for c := 0; c < 3; c++ {
		if rgb.Channels[c][0] != 1.0 {
			t.Errorf("channel %d = %v, want 1.0", c, rgb.Channels[c][0])
		}
	}

	tinted, _ := ConvertCaptureToRGBImage(Capture{Image: uniformYCbCr(4, 4, 255, 128, 180)})
	if tinted.Channels[0][0] == tinted.Channels[1][0] {
		t.Error("expected red and green to differ for a tinted frame")
	}
}

func TestImagePatch(t *testing.T) {
	img := newFloatImage(100, 50, 2)
	for i := range img.Channels[0] {
		img.Channels[0][i] = float64(i % 100) // column index
		img.Channels[1][i] = float64(i / 100) // row index
	}

	patch := ImagePatch(img, 0.45, 0.45, 0.1, 0.1)
	if patch.Width != 10 || patch.Height != 5 {
		t.Fatalf("patch size = %dx%d, want 10x5", patch.Width, patch.Height)
	}
	if got := patch.Channels[0][0]; got != 45 {
		t.Errorf("first column = %v, want 45", got)
	}
	if got := patch.Channels[1][0]; got != 23 {
		t.Errorf("first row = %v, want 23", got)
	}
	if got := patch.Channels[0][patch.Width-1]; got != 54 {
		t.Errorf("last column = %v, want 54", got)
	}

	clipped := ImagePatch(img, 0.95, 0.95, 0.1, 0.1)
	if clipped.Width != 5 || clipped.Height != 2 {
		t.Errorf("clipped patch size = %dx%d, want 5x2", clipped.Width, clipped.Height)
	}
}

func TestImageMeans(t *testing.T) {
	img := newFloatImage(2, 2, 3)
	copy(img.Channels[0], []float64{0, 1, 0, 1})
	copy(img.Channels[1], []float64{0.2, 0.2, 0.2, 0.2})
	copy(img.Channels[2], []float64{1, 1, 1, 0})

	means := ImageMeans(img)
	want := []float64{0.5, 0.2, 0.75}
	for i := range want {
		if math.Abs(means[i]-want[i]) > 1e-12 {
			t.Errorf("mean[%d] = %v, want %v", i, means[i], want[i])
		}
	}

	empty := ImageMeans(newFloatImage(0, 0, 1))
	if !math.IsNaN(empty[0]) {
		t.Errorf("empty mean = %v, want NaN", empty[0])
	}
}
