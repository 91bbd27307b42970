package facedet

import "fmt"

// tap describes the source pixels one output pixel draws from along one
// axis: the base source offset inside an 8-pixel span and the fixed
// rational weights of the consecutive pixels starting there.
type tap struct {
	base int
	w    []int
}

// Per-axis weight tables for the 7/8, 6/8 and 5/8 scalers. The 7/8 table is
// bilinear interpolation in eighths, the 6/8 and 5/8 tables are exact area
// averages in quarters and eighths. Squaring the denominator gives the
// divisors 64, 16 and 64.
var (
	taps7 = []tap{
		{0, []int{7, 1}}, {1, []int{6, 2}}, {2, []int{5, 3}}, {3, []int{4, 4}},
		{4, []int{3, 5}}, {5, []int{2, 6}}, {6, []int{1, 7}},
	}
	taps6 = []tap{
		{0, []int{3, 1}}, {1, []int{2, 2}}, {2, []int{1, 3}},
		{4, []int{3, 1}}, {5, []int{2, 2}}, {6, []int{1, 3}},
	}
	taps5 = []tap{
		{0, []int{5, 3}}, {1, []int{2, 5, 1}}, {3, []int{4, 4}},
		{4, []int{1, 5, 2}}, {6, []int{3, 5}},
	}
)

// scaleBlock maps one 8x8 source block to one len(taps) x len(taps) output
// block using the given weight table, with +half/div rounding.
func scaleBlock(src *Image, sx, sy int, dst *Image, dx, dy int, taps []tap, half, div int) {
	for oy := range taps {
		ty := &taps[oy]
		for ox := range taps {
			tx := &taps[ox]
			sum := half
			for j, wy := range ty.w {
				row := (sy+ty.base+j)*src.Stride + sx + tx.base
				for i, wx := range tx.w {
					sum += wy * wx * int(src.Data[row+i])
				}
			}
			dst.Data[(dy+oy)*dst.Stride+dx+ox] = uint8(sum / div)
		}
	}
}

// Downscale875 produces the 7/8, 6/8 and 5/8 scalings of src in one pass
// over its 8x8 blocks. Border pixels that do not fill a whole block are
// discarded symmetrically; the returned offsets report the margin thrown
// away on the left and top, which every later coordinate reconstruction
// reuses. The destination images must be preallocated with at least
// blocks*7, blocks*6 and blocks*5 pixels per side; their Width and Height
// are set by this call.
func Downscale875(src, dst7, dst6, dst5 *Image) (offsetX, offsetY int) {
	blocksW, blocksH := src.Width/8, src.Height/8
	offsetX, offsetY = (src.Width%8)/2, (src.Height%8)/2

	dst7.Width, dst7.Height = blocksW*7, blocksH*7
	dst6.Width, dst6.Height = blocksW*6, blocksH*6
	dst5.Width, dst5.Height = blocksW*5, blocksH*5

	for by := 0; by < blocksH; by++ {
		sy := by*8 + offsetY
		for bx := 0; bx < blocksW; bx++ {
			sx := bx*8 + offsetX
			scaleBlock(src, sx, sy, dst7, bx*7, by*7, taps7, 32, 64)
			scaleBlock(src, sx, sy, dst6, bx*6, by*6, taps6, 8, 16)
			scaleBlock(src, sx, sy, dst5, bx*5, by*5, taps5, 32, 64)
		}
	}
	return offsetX, offsetY
}

// Halve reduces src to half size with a 2x2 box average, rounding to
// nearest. dst may be src itself: the output row never overtakes the input
// rows it reads. Distinct images must not alias unless their strides match.
func Halve(src, dst *Image) {
	outW, outH := src.Width/2, src.Height/2
	dst.Width, dst.Height = outW, outH

	for y := 0; y < outH; y++ {
		s1 := src.Data[src.Stride*y*2:]
		s2 := s1[src.Stride:]
		out := dst.Data[dst.Stride*y:]
		for x := 0; x < outW; x++ {
			x2 := x << 1
			out[x] = uint8((int(s1[x2]) + int(s1[x2+1]) +
				int(s2[x2]) + int(s2[x2+1]) + 2) >> 2)
		}
	}
}

// Scale converts a pyramid level index into the factor that maps level
// coordinates back to source-image coordinates. The sequence is
// 8/8, 8/7, 8/6, 8/5, 16/8, 16/7 and so on: four ratio streams halved once
// per octave. Both the host scan and the device result reconstruction
// depend on this exact closed form.
func Scale(index int) float64 {
	return float64(int(8)<<(uint(index)/4)) / float64(8-index%4)
}

// Level is one pyramid image tagged with its scale index.
type Level struct {
	Image *Image
	Index int
}

// Pyramid holds every scaled derivative of a source image down to the
// classifier window size, plus the margins discarded by the block scaler.
type Pyramid struct {
	Levels  []Level
	OffsetX int
	OffsetY int
}

// BuildPyramid builds the full image pyramid for a given scanning window.
// The source is left untouched. A source smaller than the window yields an
// empty pyramid. Levels are appended in scale order; as soon as one of the
// four streams drops below the window the pyramid ends, so level indexes
// always match the Scale sequence.
func BuildPyramid(src *Image, windowWidth, windowHeight int) (*Pyramid, error) {
	if src.IsEmpty() {
		return nil, fmt.Errorf("%w: empty source image", ErrInvalidArgument)
	}
	if windowWidth < minWindowSize || windowHeight < minWindowSize {
		return nil, fmt.Errorf("%w: window %dx%d", ErrInvalidArgument, windowWidth, windowHeight)
	}
	p := &Pyramid{}
	if src.Width < windowWidth || src.Height < windowHeight {
		return p, nil
	}

	blocksW, blocksH := src.Width/8, src.Height/8

	img8, err := src.Clone()
	if err != nil {
		return nil, err
	}
	// A source narrower than one block in either dimension still gets its
	// base level scanned; the scaled streams come out empty and stop the
	// level loop right after it.
	img7, img6, img5 := &Image{}, &Image{}, &Image{}
	if blocksW > 0 && blocksH > 0 {
		if img7, err = NewImage(blocksW*7, blocksH*7); err != nil {
			return nil, err
		}
		if img6, err = NewImage(blocksW*6, blocksH*6); err != nil {
			return nil, err
		}
		if img5, err = NewImage(blocksW*5, blocksH*5); err != nil {
			return nil, err
		}
	}
	p.OffsetX, p.OffsetY = Downscale875(img8, img7, img6, img5)

	streams := []*Image{img8, img7, img6, img5}
	for index := 0; ; index += 4 {
		for i, img := range streams {
			if img.Width < windowWidth || img.Height < windowHeight {
				return p, nil
			}
			level, err := img.Clone()
			if err != nil {
				return nil, err
			}
			p.Levels = append(p.Levels, Level{Image: level, Index: index + i})
		}
		for _, img := range streams {
			Halve(img, img)
		}
	}
}
