package facedet_test

import (
	"image"
	"image/color"
	"testing"

	facedet "github.com/olajep/face-detect/core"
)

func TestFromImageConvertsToLuma(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 13, 9))
	for y := 0; y < 9; y++ {
		for x := 0; x < 13; x++ {
			src.Set(x, y, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}

	img, err := facedet.FromImage(src)
	if err != nil {
		t.Fatalf("converting the image: %v", err)
	}
	if img.Width != 13 || img.Height != 9 || img.Stride != 16 {
		t.Fatalf("converted to %dx%d stride %d, want 13x9 stride 16", img.Width, img.Height, img.Stride)
	}

	// RGBA returns 16-bit channels: v * 0x101 for an opaque NRGBA.
	luma := (0.299*float64(200) + 0.587*float64(100) + 0.114*float64(50)) * 0x101 / 256
	want := uint8(luma)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			if got := img.Data[y*img.Stride+x]; got != want {
				t.Fatalf("pixel (%d,%d) is %d, want %d", x, y, got, want)
			}
		}
	}
}

func TestFromImageHonorsBoundsOffset(t *testing.T) {
	src := image.NewGray(image.Rect(5, 3, 13, 11))
	for y := src.Bounds().Min.Y; y < src.Bounds().Max.Y; y++ {
		for x := src.Bounds().Min.X; x < src.Bounds().Max.X; x++ {
			src.SetGray(x, y, color.Gray{Y: uint8(x + y)})
		}
	}

	img, err := facedet.FromImage(src)
	if err != nil {
		t.Fatalf("converting the image: %v", err)
	}
	if img.Width != 8 || img.Height != 8 {
		t.Fatalf("converted to %dx%d, want 8x8", img.Width, img.Height)
	}
	if img.Data[0] != 5+3 {
		t.Fatalf("origin pixel is %d, want %d", img.Data[0], 5+3)
	}
}
