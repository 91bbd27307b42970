package device

import (
	"errors"
	"fmt"
	"io"
)

// Error kinds of the offload path.
var (
	ErrDevice          = errors.New("device error")
	ErrTransfer        = fmt.Errorf("%w: shared region transfer failed", ErrDevice)
	ErrTimeout         = fmt.Errorf("%w: poll deadline exceeded", ErrDevice)
	ErrCascadeTooLarge = fmt.Errorf("%w: classifier exceeds device capacity", ErrDevice)
)

// Transport is the link to the coprocessor's shared memory region. Reads
// and writes address the region layout in this package; Start signals the
// cores to begin consuming tasks. The region is never mutated by both sides
// at once: the host writes before Start, the cores write until the control
// block reports completion, then the host reads.
type Transport interface {
	io.ReaderAt
	io.WriterAt
	Start() error
	Close() error
}

// writeFull writes the whole buffer at off, turning short writes into
// ErrTransfer.
func writeFull(t Transport, buf []byte, off int64) error {
	n, err := t.WriteAt(buf, off)
	if err != nil {
		return fmt.Errorf("%w: write of %d bytes at %#x: %v", ErrTransfer, len(buf), off, err)
	}
	if n != len(buf) {
		return fmt.Errorf("%w: short write at %#x: %d of %d bytes", ErrTransfer, off, n, len(buf))
	}
	return nil
}

// readFull reads the whole buffer at off, turning short reads into
// ErrTransfer.
func readFull(t Transport, buf []byte, off int64) error {
	n, err := t.ReadAt(buf, off)
	if err != nil {
		return fmt.Errorf("%w: read of %d bytes at %#x: %v", ErrTransfer, len(buf), off, err)
	}
	if n != len(buf) {
		return fmt.Errorf("%w: short read at %#x: %d of %d bytes", ErrTransfer, off, n, len(buf))
	}
	return nil
}
