package pipeline

import "sync/atomic"

// Stats are the coordinator-owned counters. Each is written by exactly one
// stage; the telemetry sampler only reads snapshots.
type Stats struct {
	captured  atomic.Uint64
	dropped   atomic.Uint64
	skipped   atomic.Uint64
	published atomic.Uint64
	late      atomic.Uint64
	lastSeq   atomic.Uint64
	degraded  atomic.Bool
}

// Snapshot is a read-only copy of the pipeline counters plus current queue
// depths.
type Snapshot struct {
	Captured   uint64
	Dropped    uint64
	Skipped    uint64
	Published  uint64
	Late       uint64
	LastSeq    uint64
	Degraded   bool
	InferDepth int
	EmitDepth  int
}

func (c *Coordinator) Snapshot() Snapshot {
	return Snapshot{
		Captured:   c.stats.captured.Load(),
		Dropped:    c.stats.dropped.Load(),
		Skipped:    c.stats.skipped.Load(),
		Published:  c.stats.published.Load(),
		Late:       c.stats.late.Load(),
		LastSeq:    c.stats.lastSeq.Load(),
		Degraded:   c.stats.degraded.Load(),
		InferDepth: c.inferQ.Len(),
		EmitDepth:  len(c.emitCh),
	}
}
