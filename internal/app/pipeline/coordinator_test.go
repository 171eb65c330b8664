package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rtorresf4/vision-iot-pi5/internal/domain"
	"github.com/rtorresf4/vision-iot-pi5/internal/ports"
)

func TestCoordinatorDropOldestKeepsOrder(t *testing.T) {
	frames := make([]*domain.Frame, 0, 100)
	for i := 1; i <= 100; i++ {
		frames = append(frames, &domain.Frame{Seq: uint64(i), Timestamp: time.Now()})
	}
	src := &fakeSource{frames: frames}
	inf := &fakeInfer{delay: 2 * time.Millisecond}
	sink := &batchSink{}

	c := New(Config{
		QueueCapacity: 2,
		Policy:        DropOldest,
		LatencyBudget: time.Minute,
	}, src, inf, sink.collect, &fakeObs{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		snap := c.Snapshot()
		return snap.Published+snap.Dropped == 100
	})
	c.Stop()

	snap := c.Snapshot()
	if snap.Captured != 100 {
		t.Fatalf("expected 100 captured, got %d", snap.Captured)
	}
	if snap.Dropped == 0 {
		t.Fatalf("expected drops with capacity 2 and slow inference")
	}

	batches := sink.snapshot()
	if len(batches) == 0 {
		t.Fatalf("expected some batches to be published")
	}
	seen := make(map[uint64]bool, len(batches))
	prev := uint64(0)
	for _, b := range batches {
		if seen[b.Seq] {
			t.Fatalf("sequence %d published twice", b.Seq)
		}
		seen[b.Seq] = true
		if b.Seq <= prev {
			t.Fatalf("sequence out of order: %d after %d", b.Seq, prev)
		}
		prev = b.Seq
	}
	if prev != 100 {
		t.Fatalf("expected newest frame to survive drop-oldest, last seq %d", prev)
	}
}

func TestCoordinatorDropNewestDiscardsIncoming(t *testing.T) {
	frames := make([]*domain.Frame, 0, 50)
	for i := 1; i <= 50; i++ {
		frames = append(frames, &domain.Frame{Seq: uint64(i), Timestamp: time.Now()})
	}
	src := &fakeSource{frames: frames}
	inf := &fakeInfer{delay: 2 * time.Millisecond}
	sink := &batchSink{}

	c := New(Config{
		QueueCapacity: 2,
		Policy:        DropNewest,
		LatencyBudget: time.Minute,
	}, src, inf, sink.collect, &fakeObs{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, 5*time.Second, func() bool {
		snap := c.Snapshot()
		return snap.Published+snap.Dropped == 50
	})
	c.Stop()

	if snap := c.Snapshot(); snap.Dropped == 0 {
		t.Fatalf("expected drops with capacity 2 and slow inference")
	}
	batches := sink.snapshot()
	if len(batches) == 0 || batches[0].Seq != 1 {
		t.Fatalf("drop-newest should keep the earliest frames, got %+v", batches)
	}
}

func TestCoordinatorInferenceFailuresSkipAndDegrade(t *testing.T) {
	frames := make([]*domain.Frame, 0, 5)
	for i := 1; i <= 5; i++ {
		frames = append(frames, &domain.Frame{Seq: uint64(i), Timestamp: time.Now()})
	}
	src := &fakeSource{frames: frames}
	inf := &fakeInfer{failAlways: true}
	obs := &fakeObs{}

	c := New(Config{Policy: Block, DegradeAfter: 3, LatencyBudget: time.Minute}, src, inf, func(domain.DetectionBatch) {}, obs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, 5*time.Second, func() bool {
		return c.Snapshot().Skipped == 5
	})
	c.Stop()

	snap := c.Snapshot()
	if snap.Published != 0 {
		t.Fatalf("no batch should be published for failed frames, got %d", snap.Published)
	}
	if !snap.Degraded {
		t.Fatalf("expected degraded after %d consecutive failures", 3)
	}
	if c.Err() != nil {
		t.Fatalf("inference failures are not fatal, got %v", c.Err())
	}
}

func TestCoordinatorRecoversFromInferenceFailures(t *testing.T) {
	frames := make([]*domain.Frame, 0, 6)
	for i := 1; i <= 6; i++ {
		frames = append(frames, &domain.Frame{Seq: uint64(i), Timestamp: time.Now()})
	}
	src := &fakeSource{frames: frames}
	inf := &fakeInfer{failures: 4}
	sink := &batchSink{}

	c := New(Config{Policy: Block, DegradeAfter: 3, LatencyBudget: time.Minute}, src, inf, sink.collect, &fakeObs{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, 5*time.Second, func() bool {
		return c.Snapshot().Published == 2
	})
	c.Stop()

	snap := c.Snapshot()
	if snap.Skipped != 4 {
		t.Fatalf("expected 4 skipped, got %d", snap.Skipped)
	}
	if snap.Degraded {
		t.Fatalf("degraded should clear after a successful inference")
	}
	batches := sink.snapshot()
	if len(batches) != 2 || batches[0].Seq != 5 || batches[1].Seq != 6 {
		t.Fatalf("unexpected surviving batches: %+v", batches)
	}
}

func TestCoordinatorMarksLateBatches(t *testing.T) {
	src := &fakeSource{frames: []*domain.Frame{
		{Seq: 1, Timestamp: time.Now().Add(-time.Second)},
	}}
	sink := &batchSink{}

	c := New(Config{Policy: Block, LatencyBudget: 10 * time.Millisecond}, src, &fakeInfer{}, sink.collect, &fakeObs{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool {
		return c.Snapshot().Published == 1
	})
	c.Stop()

	batches := sink.snapshot()
	if len(batches) != 1 || !batches[0].Late {
		t.Fatalf("expected the batch to be flagged late: %+v", batches)
	}
	if c.Snapshot().Late != 1 {
		t.Fatalf("expected late counter 1, got %d", c.Snapshot().Late)
	}
}

func TestCoordinatorStartFailsWhenSourceUnavailable(t *testing.T) {
	src := &fakeSource{openErr: errors.New("no such device")}

	c := New(Config{OpenTimeout: 50 * time.Millisecond}, src, &fakeInfer{}, func(domain.DetectionBatch) {}, &fakeObs{})

	err := c.Start(context.Background())
	if err == nil {
		t.Fatalf("expected start to fail")
	}
	if !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestCoordinatorFailsAfterReadRetriesExhausted(t *testing.T) {
	src := &fakeSource{readErr: domain.ErrReadTimeout}

	c := New(Config{
		ReadRetries:    2,
		ReadRetryDelay: time.Millisecond,
	}, src, &fakeInfer{}, func(domain.DetectionBatch) {}, &fakeObs{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("pipeline should stop after read retries are exhausted")
	}
	if !errors.Is(c.Err(), domain.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", c.Err())
	}
	c.Stop()
}

func TestCoordinatorStopIsIdempotent(t *testing.T) {
	src := &fakeSource{}

	c := New(Config{}, src, &fakeInfer{}, func(domain.DetectionBatch) {}, &fakeObs{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	c.Stop()
	c.Stop()

	if src.closes != 1 {
		t.Fatalf("source should be closed exactly once, got %d", src.closes)
	}
}

func TestCoordinatorStopAfterFailedStartReturns(t *testing.T) {
	src := &fakeSource{openErr: errors.New("no such device")}

	c := New(Config{OpenTimeout: 50 * time.Millisecond}, src, &fakeInfer{}, func(domain.DetectionBatch) {}, &fakeObs{})

	if err := c.Start(context.Background()); err == nil {
		t.Fatalf("expected start to fail")
	}

	returned := make(chan struct{})
	go func() {
		c.Stop()
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("Stop should return immediately when Start never succeeded")
	}
	if src.closes != 0 {
		t.Fatalf("source was never opened, expected no closes, got %d", src.closes)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

type fakeSource struct {
	mu      sync.Mutex
	frames  []*domain.Frame
	readErr error
	openErr error
	closes  int
}

func (s *fakeSource) Open(context.Context) error { return s.openErr }

func (s *fakeSource) Read(ctx context.Context) (*domain.Frame, error) {
	s.mu.Lock()
	if len(s.frames) == 0 {
		s.mu.Unlock()
		if s.readErr != nil {
			return nil, s.readErr
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	s.mu.Unlock()
	return f, nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

type fakeInfer struct {
	mu         sync.Mutex
	delay      time.Duration
	failures   int
	failAlways bool
}

func (m *fakeInfer) Infer(_ context.Context, f *domain.Frame) ([]domain.Detection, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAlways {
		return nil, domain.ErrInference
	}
	if m.failures > 0 {
		m.failures--
		return nil, domain.ErrInference
	}
	return []domain.Detection{{Label: domain.LabelOK, Confidence: 0.9}}, nil
}

func (m *fakeInfer) Close() error { return nil }

type batchSink struct {
	mu      sync.Mutex
	batches []domain.DetectionBatch
}

func (s *batchSink) collect(b domain.DetectionBatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, b)
}

func (s *batchSink) snapshot() []domain.DetectionBatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.DetectionBatch, len(s.batches))
	copy(out, s.batches)
	return out
}

type fakeObs struct {
	mu    sync.Mutex
	warns []string
}

func (o *fakeObs) LogInfo(string, ...ports.Field) {}

func (o *fakeObs) LogWarn(msg string, _ ...ports.Field) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.warns = append(o.warns, msg)
}

func (o *fakeObs) LogError(string, error, ...ports.Field) {}
func (o *fakeObs) IncCounter(string, float64)             {}
func (o *fakeObs) SetGauge(string, float64)               {}
func (o *fakeObs) ObserveLatency(string, float64)         {}
