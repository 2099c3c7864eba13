package vision

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors.
var (
	ErrUnknownLayer       = errors.New("unknown layer name")
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported weights format version")
	ErrChecksumMismatch   = errors.New("checksum mismatch: weights file may be corrupted")
)

// LayerError reports a request for a layer the catalog does not contain.
// It is raised before any computation runs.
type LayerError struct {
	Layer     string
	Available []string
}

// Error implements the error interface.
func (e *LayerError) Error() string {
	return fmt.Sprintf("vision: unknown layer %q (available: %s)", e.Layer, strings.Join(e.Available, ", "))
}

// Unwrap allows errors.Is(err, ErrUnknownLayer).
func (e *LayerError) Unwrap() error {
	return ErrUnknownLayer
}

// ResourceError reports a failure to initialize the feature network or load
// its weights. It is fatal for the process; callers do not retry it here.
type ResourceError struct {
	Path string // Weights file involved, if any.
	Err  error
}

// Error implements the error interface.
func (e *ResourceError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("vision: loading weights %q: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("vision: network init: %v", e.Err)
}

// Unwrap returns the underlying cause.
func (e *ResourceError) Unwrap() error {
	return e.Err
}
