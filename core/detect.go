package facedet

import "fmt"

// Backend executes the per-window classification over a built pyramid.
// The host scanner and the device offload protocol are interchangeable
// implementations; they share the pyramid builder, the interpreter and the
// coordinate reconstruction.
type Backend interface {
	DetectPyramid(p *Pyramid, c *Cascade, scan ScanMode) ([]Rect, error)
}

// Detect runs multi-scale object detection over img with the given cascade.
// A nil backend scans on the host. An image smaller than the scanning
// window succeeds with no detections.
func Detect(img *Image, c *Cascade, scan ScanMode, backend Backend) ([]Rect, error) {
	if img.IsEmpty() {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidArgument)
	}
	if c == nil || len(c.blob) == 0 {
		return nil, fmt.Errorf("%w: empty cascade", ErrInvalidArgument)
	}
	if scan != ScanFull && scan != ScanEven && scan != ScanOdd {
		return nil, fmt.Errorf("%w: scan mode %d", ErrInvalidArgument, int(scan))
	}
	if img.Width < c.windowWidth || img.Height < c.windowHeight {
		return nil, nil
	}

	p, err := BuildPyramid(img, c.windowWidth, c.windowHeight)
	if err != nil {
		return nil, err
	}
	if backend == nil {
		backend = &HostBackend{}
	}
	return backend.DetectPyramid(p, c, scan)
}
