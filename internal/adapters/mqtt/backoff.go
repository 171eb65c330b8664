package mqtt

import (
	"math/rand"
	"time"
)

// backoff yields exponentially growing reconnect delays, jittered so a fleet
// of edge devices does not reconnect in lockstep. The raw sequence is
// non-decreasing and capped at max; jitter stays within ±fraction of the
// raw delay.
type backoff struct {
	base   time.Duration
	max    time.Duration
	jitter float64
	cur    time.Duration
}

func newBackoff(base, max time.Duration, jitter float64) *backoff {
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	return &backoff{base: base, max: max, jitter: jitter, cur: base}
}

// Next returns the delay to wait before the next attempt and advances the
// sequence.
func (b *backoff) Next() time.Duration {
	raw := b.cur
	if next := b.cur * 2; next > b.max || next < b.cur {
		b.cur = b.max
	} else {
		b.cur = next
	}
	if b.jitter == 0 {
		return raw
	}
	spread := (rand.Float64()*2 - 1) * b.jitter // [-jitter, +jitter]
	d := time.Duration(float64(raw) * (1 + spread))
	if d < 0 {
		d = 0
	}
	return d
}

// Reset returns the sequence to the base delay after a successful connect.
func (b *backoff) Reset() {
	b.cur = b.base
}
