package facedet

import "image"

// FromImage converts any image.Image into a grayscale detection buffer with
// an 8-aligned row stride.
func FromImage(src image.Image) (*Image, error) {
	cols, rows := src.Bounds().Dx(), src.Bounds().Dy()
	img, err := NewImage(cols, rows)
	if err != nil {
		return nil, err
	}
	minX, minY := src.Bounds().Min.X, src.Bounds().Min.Y
	for y := 0; y < rows; y++ {
		row := img.Data[y*img.Stride:]
		for x := 0; x < cols; x++ {
			r, g, b, _ := src.At(minX+x, minY+y).RGBA()
			row[x] = uint8(
				(0.299*float64(r) +
					0.587*float64(g) +
					0.114*float64(b)) / 256,
			)
		}
	}
	return img, nil
}
