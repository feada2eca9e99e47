package types

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode means source or pattern bytes could not be parsed as an image.
	ErrDecode = errors.New("image decode failed")
	// ErrRender means no drawing surface could be produced.
	ErrRender = errors.New("render failed")
	// ErrDegenerateGeometry marks an affine solve whose determinant is ~0.
	ErrDegenerateGeometry = errors.New("degenerate geometry")
	// ErrInvalidArgument covers out-of-range dimensions, zoom, amounts and names.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnknownPreset is returned by catalog lookups.
	ErrUnknownPreset = errors.New("unknown preset")
	// ErrUnsupportedFormat is returned for encodings other than png, jpeg and webp.
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// BatchError reports the preset that failed a batch. The whole batch is
// discarded when one is returned.
type BatchError struct {
	PresetID string
	Err      error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("preset %s: %v", e.PresetID, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}
