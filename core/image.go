package facedet

import (
	"encoding/binary"
	"fmt"
	"os"
)

// Image file magic ("FDIM" little-endian).
const magicImage = 0x4d494446

// Image is a row-major 8-bit grayscale buffer. The row stride is the width
// rounded up to a multiple of 8 so every scan line starts 8-aligned, which
// the pyramid scaler and the tile planner rely on.
type Image struct {
	Data   []uint8
	Width  int
	Height int
	Stride int
}

// NewImage allocates an image of the given size with undefined contents.
func NewImage(width, height int) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: image size %dx%d", ErrInvalidArgument, width, height)
	}
	stride := roundUp8(width)
	return &Image{
		Data:   make([]uint8, stride*height),
		Width:  width,
		Height: height,
		Stride: stride,
	}, nil
}

// IsEmpty reports whether the image holds no pixel data.
func (img *Image) IsEmpty() bool {
	return img == nil || len(img.Data) == 0
}

// SubImage returns a view over a rectangular region of the image. The view
// aliases the parent buffer and keeps the parent stride. The coordinates are
// not checked.
func (img *Image) SubImage(x, y, width, height int) *Image {
	off := y*img.Stride + x
	return &Image{
		Data:   img.Data[off:],
		Width:  width,
		Height: height,
		Stride: img.Stride,
	}
}

// CloneRegion deep-copies a rectangular region into a new image with its own
// 8-aligned stride. The coordinates are not checked.
func (img *Image) CloneRegion(x, y, width, height int) (*Image, error) {
	dst, err := NewImage(width, height)
	if err != nil {
		return nil, err
	}
	for line := 0; line < height; line++ {
		src := img.Data[(y+line)*img.Stride+x:]
		copy(dst.Data[line*dst.Stride:line*dst.Stride+width], src[:width])
	}
	return dst, nil
}

// Clone deep-copies the whole image.
func (img *Image) Clone() (*Image, error) {
	return img.CloneRegion(0, 0, img.Width, img.Height)
}

// Checksum sums the visible pixels (stride padding excluded). Images with
// the same contents get the same checksum; the converse is not guaranteed.
func (img *Image) Checksum() int {
	sum := 0
	for y := 0; y < img.Height; y++ {
		row := img.Data[y*img.Stride : y*img.Stride+img.Width]
		for _, p := range row {
			sum += int(p)
		}
	}
	return sum
}

// SaveImage writes the image to a simple binary file: int32 magic, int32
// width, int32 height, then width*height row-packed pixels with the stride
// padding stripped.
func SaveImage(img *Image, name string) error {
	if img.IsEmpty() || img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("%w: cannot save an empty image", ErrInvalidArgument)
	}
	buf := make([]byte, 12+img.Width*img.Height)
	binary.LittleEndian.PutUint32(buf[0:], magicImage)
	binary.LittleEndian.PutUint32(buf[4:], uint32(img.Width))
	binary.LittleEndian.PutUint32(buf[8:], uint32(img.Height))
	out := buf[12:]
	for y := 0; y < img.Height; y++ {
		copy(out[y*img.Width:], img.Data[y*img.Stride:y*img.Stride+img.Width])
	}
	if err := os.WriteFile(name, buf, 0644); err != nil {
		return fmt.Errorf("writing image file: %w", err)
	}
	return nil
}

// LoadImage reads a file previously written by SaveImage.
func LoadImage(name string) (*Image, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading image file: %w", err)
	}
	if len(data) < 12 {
		return nil, fmt.Errorf("%w: image file header is short", ErrCorruptData)
	}
	if binary.LittleEndian.Uint32(data[0:]) != magicImage {
		return nil, ErrBadMagic
	}
	width := int(int32(binary.LittleEndian.Uint32(data[4:])))
	height := int(int32(binary.LittleEndian.Uint32(data[8:])))
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: image size %dx%d", ErrCorruptData, width, height)
	}
	if len(data) != 12+width*height {
		return nil, fmt.Errorf("%w: image payload is %d bytes, want %d",
			ErrCorruptData, len(data)-12, width*height)
	}
	img, err := NewImage(width, height)
	if err != nil {
		return nil, err
	}
	pixels := data[12:]
	for y := 0; y < height; y++ {
		copy(img.Data[y*img.Stride:], pixels[y*width:(y+1)*width])
	}
	return img, nil
}
