package kstar

import "errors"

var (
	ErrInvalidConfig = errors.New("invalid model configuration")

	// ErrKernelContract is returned when an attribute kernel produces a
	// value outside [0, 1].
	ErrKernelContract = errors.New("attribute kernel returned an invalid probability")

	ErrSchemaMismatch = errors.New("instance schema does not match the model")

	ErrEntropicNeedsNominalClass = errors.New("entropic blending requires a nominal class")

	ErrUnsupportedAttribute = errors.New("unsupported attribute type")
)
