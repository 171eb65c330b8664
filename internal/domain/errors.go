package domain

import "errors"

// Error kinds shared across stages. Wrapped with %w so callers can branch on
// the kind without string matching.
var (
	// ErrSourceUnavailable is fatal: the camera could not be opened, or
	// reads kept failing past the configured retry budget.
	ErrSourceUnavailable = errors.New("frame source unavailable")

	// ErrReadTimeout is a single failed or timed-out frame read. Retried by
	// the capture stage, never propagated on its own.
	ErrReadTimeout = errors.New("frame read timeout")

	// ErrInference is a single failed inference call. The frame is skipped
	// and the pipeline continues.
	ErrInference = errors.New("inference failed")

	// ErrSensorUnavailable marks one failed sensor read. The polling loop
	// keeps running.
	ErrSensorUnavailable = errors.New("sensor unavailable")
)
