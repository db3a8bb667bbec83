package types

import "errors"

var (
	// ErrInvalidArgument is returned for zero or negative translen/nchan, unsupported sample widths,
	// and malformed ranges. It is always raised before any I/O.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrShortBurst marks a burst read that returned fewer samples than a full burst. Recovered by skipping.
	ErrShortBurst = errors.New("short burst")

	// ErrLengthMismatch marks a candidate whose length differs from the reference. Recovered by skipping.
	ErrLengthMismatch = errors.New("length mismatch")

	// ErrReferenceUnavailable is returned when the file does not hold one complete burst.
	ErrReferenceUnavailable = errors.New("reference burst unavailable")
)
