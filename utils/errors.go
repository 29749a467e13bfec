package utils

import (
	"github.com/pkg/errors"
)

var (
	// ErrScratchExhausted is returned when every per-frame scratch reservation is in use.
	ErrScratchExhausted = errors.New("scratch memory exhausted")
	// ErrClosed is returned by operations on an extractor that has been closed.
	ErrClosed = errors.New("extractor is closed")
)

// NewUnexpectedFrameSizeError is used when an input frame does not have the fixed stereo geometry.
func NewUnexpectedFrameSizeError(width, height, stride, expectedWidth, expectedHeight int) error {
	return errors.Errorf("expected a %dx%d frame with stride >= %d but got %dx%d with stride %d",
		expectedWidth, expectedHeight, expectedWidth, width, height, stride)
}

// NewCapacityError is used when a fixed-size table would overflow.
func NewCapacityError(what string, needed, capacity int) error {
	return errors.Errorf("%s needs %d entries but capacity is %d", what, needed, capacity)
}
