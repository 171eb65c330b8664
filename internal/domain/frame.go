package domain

import "time"

// Frame is one timestamped image captured from the camera. It is owned by the
// capture stage until handed to inference and is consumed by at most one
// inference attempt.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Data      []byte
	Width     int
	Height    int
}
