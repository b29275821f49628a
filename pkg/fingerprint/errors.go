package fingerprint

import "errors"

var (
	// ErrDegenerateInput is returned when a document is too short to hash
	// or its selected coverage is zero.
	ErrDegenerateInput = errors.New("degenerate input")

	// ErrInvalidThreshold is returned when the noise threshold is below 1
	// or the guarantee threshold is below the noise threshold.
	ErrInvalidThreshold = errors.New("invalid threshold")
)
