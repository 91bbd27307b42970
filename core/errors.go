package facedet

import (
	"errors"
	"fmt"
)

// Error kinds returned by the detector. More specific failures wrap one of
// these, so callers can classify any error with errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrCorruptData     = errors.New("corrupt data")
)

// Structural cascade validation failures. All of them wrap ErrCorruptData.
var (
	ErrBadMagic          = fmt.Errorf("%w: wrong file magic", ErrCorruptData)
	ErrCascadeTruncated  = fmt.Errorf("%w: cascade blob is truncated", ErrCorruptData)
	ErrCascadeNoMeta     = fmt.Errorf("%w: cascade does not start with a meta node", ErrCorruptData)
	ErrWindowTooSmall    = fmt.Errorf("%w: cascade window is smaller than %dx%d", ErrCorruptData, minWindowSize, minWindowSize)
	ErrCascadeNoDecision = fmt.Errorf("%w: second cascade node is not a decision node", ErrCorruptData)
	ErrCascadeNoStage    = fmt.Errorf("%w: second-to-last cascade node is not a stage node", ErrCorruptData)
	ErrCascadeNoFinal    = fmt.Errorf("%w: cascade does not end with a final node", ErrCorruptData)
)
