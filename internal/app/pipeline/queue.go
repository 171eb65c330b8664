package pipeline

import (
	"sync"

	"github.com/rtorresf4/vision-iot-pi5/internal/domain"
)

// DropPolicy decides what happens when the inference queue is full.
type DropPolicy string

const (
	// DropOldest evicts the queued frame to admit the new one. Favors
	// freshness and bounds latency; the default.
	DropOldest DropPolicy = "drop-oldest"
	// DropNewest discards the incoming frame, bounding loss to bursts.
	DropNewest DropPolicy = "drop-newest"
	// Block applies backpressure to capture. Only for workloads where frame
	// loss is unacceptable and the camera tolerates stalling.
	Block DropPolicy = "block"
)

// ValidPolicy reports whether s names a known drop policy.
func ValidPolicy(s string) bool {
	switch DropPolicy(s) {
	case DropOldest, DropNewest, Block:
		return true
	}
	return false
}

// frameQueue is a bounded FIFO between the capture and inference stages.
// Single producer, single consumer; the mutex only guards the depth gauge
// read from the telemetry sampler.
type frameQueue struct {
	mu   sync.Mutex
	data []*domain.Frame
	cap  int
}

func newFrameQueue(capacity int) *frameQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &frameQueue{
		data: make([]*domain.Frame, 0, capacity),
		cap:  capacity,
	}
}

// TryPut appends f if there is room.
func (q *frameQueue) TryPut(f *domain.Frame) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) >= q.cap {
		return false
	}
	q.data = append(q.data, f)
	return true
}

// PutEvict appends f, evicting and returning the oldest queued frame when
// the queue is full. Returns nil when nothing was evicted.
func (q *frameQueue) PutEvict(f *domain.Frame) *domain.Frame {
	q.mu.Lock()
	defer q.mu.Unlock()
	var evicted *domain.Frame
	if len(q.data) >= q.cap {
		evicted = q.data[0]
		q.data = append(q.data[:0], q.data[1:]...)
	}
	q.data = append(q.data, f)
	return evicted
}

// Get pops the oldest frame, or nil when the queue is empty.
func (q *frameQueue) Get() *domain.Frame {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return nil
	}
	f := q.data[0]
	q.data = append(q.data[:0], q.data[1:]...)
	return f
}

func (q *frameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}
