package classifier

import (
	"errors"
	"fmt"
)

var (
	// ErrImageDecode matches any *ImageDecodeError via errors.Is.
	ErrImageDecode = errors.New("image decode failed")
	// ErrDimensionMismatch matches any *DimensionMismatchError via errors.Is.
	ErrDimensionMismatch = errors.New("template larger than source")
)

// ImageDecodeError reports a missing, unreadable or malformed image.
type ImageDecodeError struct {
	Path  string
	Cause error
}

// NewImageDecodeError wraps cause for the image at path. An existing
// *ImageDecodeError is returned unchanged.
func NewImageDecodeError(path string, cause error) *ImageDecodeError {
	var decodeErr *ImageDecodeError
	if errors.As(cause, &decodeErr) {
		return decodeErr
	}
	return &ImageDecodeError{Path: path, Cause: cause}
}

func (e *ImageDecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cannot decode image %s: %v", e.Path, e.Cause)
	}
	return fmt.Sprintf("cannot decode image %s", e.Path)
}

func (e *ImageDecodeError) Unwrap() error {
	return e.Cause
}

func (e *ImageDecodeError) Is(target error) bool {
	return target == ErrImageDecode
}

// DimensionMismatchError reports a template that does not fit inside the
// source and no size hint that could reconcile the two.
type DimensionMismatchError struct {
	Source   Dimension
	Template Dimension
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("template %s is larger than source %s", e.Template, e.Source)
}

func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}
