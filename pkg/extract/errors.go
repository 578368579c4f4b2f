package extract

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedToken marks a value inside a captured block or measurement
	// that does not parse as a number.
	ErrMalformedToken = errors.New("extract: malformed numeric token")

	// ErrUnsupportedDevice marks a bandwidth measurement naming a device
	// index outside the configured range.
	ErrUnsupportedDevice = errors.New("extract: device index out of range")

	// ErrInvalidSize is returned for a device count outside 1..MaxDeviceCount.
	ErrInvalidSize = errors.New("extract: invalid device count")
)

// MalformedTokenError locates a token that failed numeric parsing.
type MalformedTokenError struct {
	Source string
	Line   int
	Token  string

	// Epoch and Column are set for traffic blocks.
	Epoch  int
	Column int

	// Src and Dst are the raw device captures for bandwidth measurements.
	Src string
	Dst string
}

func (e *MalformedTokenError) Error() string {
	if e.Epoch > 0 {
		return fmt.Sprintf("%s:%d: epoch %d column %d: malformed token %q",
			e.Source, e.Line, e.Epoch, e.Column, e.Token)
	}
	return fmt.Sprintf("%s:%d: GPU %s and GPU %s: malformed token %q",
		e.Source, e.Line, e.Src, e.Dst, e.Token)
}

func (e *MalformedTokenError) Unwrap() error { return ErrMalformedToken }

// UnsupportedDeviceError reports a measurement outside the device range.
type UnsupportedDeviceError struct {
	Source string
	Line   int
	Src    string
	Dst    string
	Size   int
}

func (e *UnsupportedDeviceError) Error() string {
	return fmt.Sprintf("%s:%d: GPU %s and GPU %s: device index outside 0..%d",
		e.Source, e.Line, e.Src, e.Dst, e.Size-1)
}

func (e *UnsupportedDeviceError) Unwrap() error { return ErrUnsupportedDevice }

// RecordError scopes a failure to a single traffic record.
type RecordError struct {
	Epoch int
	Line  int
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("traffic matrix epoch %d (marker at line %d): %v", e.Epoch, e.Line, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }
