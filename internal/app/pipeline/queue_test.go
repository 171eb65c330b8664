package pipeline

import (
	"testing"

	"github.com/rtorresf4/vision-iot-pi5/internal/domain"
)

func TestFrameQueueFIFO(t *testing.T) {
	q := newFrameQueue(4)

	f1 := &domain.Frame{Seq: 1}
	f2 := &domain.Frame{Seq: 2}

	if !q.TryPut(f1) || !q.TryPut(f2) {
		t.Fatalf("expected successful enqueue")
	}

	if got := q.Get(); got == nil || got.Seq != 1 {
		t.Fatalf("unexpected first frame: %+v", got)
	}
	if got := q.Get(); got == nil || got.Seq != 2 {
		t.Fatalf("unexpected second frame: %+v", got)
	}
	if got := q.Get(); got != nil {
		t.Fatalf("expected empty queue, got %+v", got)
	}
}

func TestFrameQueueTryPutFull(t *testing.T) {
	q := newFrameQueue(2)

	if !q.TryPut(&domain.Frame{Seq: 1}) || !q.TryPut(&domain.Frame{Seq: 2}) {
		t.Fatalf("expected enqueue within capacity")
	}
	if q.TryPut(&domain.Frame{Seq: 3}) {
		t.Fatalf("TryPut should fail when full")
	}
	if q.Len() != 2 {
		t.Fatalf("expected len 2, got %d", q.Len())
	}
}

func TestFrameQueuePutEvictOldest(t *testing.T) {
	q := newFrameQueue(2)

	q.TryPut(&domain.Frame{Seq: 1})
	q.TryPut(&domain.Frame{Seq: 2})

	evicted := q.PutEvict(&domain.Frame{Seq: 3})
	if evicted == nil || evicted.Seq != 1 {
		t.Fatalf("expected seq 1 evicted, got %+v", evicted)
	}
	if q.Len() != 2 {
		t.Fatalf("expected len 2 after evict, got %d", q.Len())
	}

	if got := q.Get(); got.Seq != 2 {
		t.Fatalf("expected seq 2 first, got %d", got.Seq)
	}
	if got := q.Get(); got.Seq != 3 {
		t.Fatalf("expected seq 3 second, got %d", got.Seq)
	}
}

func TestFrameQueuePutEvictWithRoom(t *testing.T) {
	q := newFrameQueue(2)

	if evicted := q.PutEvict(&domain.Frame{Seq: 1}); evicted != nil {
		t.Fatalf("nothing should be evicted, got %+v", evicted)
	}
}

func TestValidPolicy(t *testing.T) {
	for _, s := range []string{"drop-oldest", "drop-newest", "block"} {
		if !ValidPolicy(s) {
			t.Fatalf("expected %q to be valid", s)
		}
	}
	for _, s := range []string{"", "oldest", "DROP-OLDEST"} {
		if ValidPolicy(s) {
			t.Fatalf("expected %q to be invalid", s)
		}
	}
}
