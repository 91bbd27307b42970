package facedet

import (
	"runtime"
	"sync"
)

// Rect is a detection in source-image coordinates. The fields are floating
// point because pyramid scale factors are non-integer ratios.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// HostBackend scans every pyramid level in-process. Rows are handed to a
// worker pool dynamically because classification cost varies wildly with
// position: early stage rejects are cheap, near-accepts are not.
type HostBackend struct {
	// Workers caps the scan goroutines; 0 means runtime.NumCPU().
	Workers int
}

// DetectPyramid scans all levels of the pyramid and returns the accepted
// windows as absolute rectangles.
func (hb *HostBackend) DetectPyramid(p *Pyramid, c *Cascade, scan ScanMode) ([]Rect, error) {
	workers := hb.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var rects []Rect
	var mu sync.Mutex
	for _, level := range p.Levels {
		scanLevel(level.Image, c, Scale(level.Index), p.OffsetX, p.OffsetY,
			scan, workers, &mu, &rects)
	}
	return rects, nil
}

// scanLevel tests every valid window position of one level, restricted to
// the checkerboard parity when scan is not ScanFull, and appends accepted
// positions to rects scaled back into source coordinates. Rows are
// independent; only the append is serialized.
func scanLevel(img *Image, c *Cascade, scale float64, offsetX, offsetY int,
	scan ScanMode, workers int, mu *sync.Mutex, rects *[]Rect) {

	processW := img.Width + 1 - c.windowWidth
	processH := img.Height + 1 - c.windowHeight
	if processW <= 0 || processH <= 0 {
		return
	}

	detW := float64(c.windowWidth) * scale
	detH := float64(c.windowHeight) * scale

	rows := make(chan int, processH)
	for y := 0; y < processH; y++ {
		rows <- y
	}
	close(rows)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rows {
				base := y * img.Stride
				xStart, xStep := 0, 1
				if scan != ScanFull {
					xStart, xStep = (y+int(scan))&1, 2
				}
				for x := xStart; x < processW; x += xStep {
					if c.classifyWindow(img.Data, base+x, img.Stride) {
						mu.Lock()
						*rects = append(*rects, Rect{
							X:      float64(x)*scale + float64(offsetX),
							Y:      float64(y)*scale + float64(offsetY),
							Width:  detW,
							Height: detH,
						})
						mu.Unlock()
					}
				}
			}
		}()
	}
	wg.Wait()
}
