package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rtorresf4/vision-iot-pi5/internal/domain"
	"github.com/rtorresf4/vision-iot-pi5/internal/ports"
)

// Config tunes the capture → inference → emit stage graph.
type Config struct {
	QueueCapacity  int
	Policy         DropPolicy
	LatencyBudget  time.Duration
	OpenTimeout    time.Duration
	ReadRetries    int
	ReadRetryDelay time.Duration
	DegradeAfter   int
	LateWarnStreak int
	IdleSleep      time.Duration
}

func (c *Config) applyDefaults() {
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 4
	}
	if c.Policy == "" {
		c.Policy = DropOldest
	}
	if c.LatencyBudget <= 0 {
		c.LatencyBudget = 150 * time.Millisecond
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 10 * time.Second
	}
	if c.ReadRetries <= 0 {
		c.ReadRetries = 30
	}
	if c.ReadRetryDelay <= 0 {
		c.ReadRetryDelay = 20 * time.Millisecond
	}
	if c.DegradeAfter <= 0 {
		c.DegradeAfter = 3
	}
	if c.LateWarnStreak <= 0 {
		c.LateWarnStreak = 10
	}
	if c.IdleSleep <= 0 {
		c.IdleSleep = time.Millisecond
	}
}

// Coordinator runs the three pipeline stages on their own goroutines,
// connected by bounded single-producer/single-consumer hand-off points.
type Coordinator struct {
	cfg    Config
	source ports.FrameSource
	infer  ports.Inference
	emit   func(domain.DetectionBatch)
	obs    ports.Observability

	inferQ *frameQueue
	emitCh chan domain.DetectionBatch
	stats  Stats

	cancel   context.CancelFunc
	done     chan struct{}
	started  atomic.Bool
	stopOnce sync.Once

	errMu    sync.Mutex
	fatalErr error
}

// New builds a coordinator. emit receives every completed batch in strictly
// increasing sequence order and must not block on network I/O.
func New(cfg Config, source ports.FrameSource, infer ports.Inference, emit func(domain.DetectionBatch), obs ports.Observability) *Coordinator {
	cfg.applyDefaults()
	return &Coordinator{
		cfg:    cfg,
		source: source,
		infer:  infer,
		emit:   emit,
		obs:    obs,
		inferQ: newFrameQueue(cfg.QueueCapacity),
		emitCh: make(chan domain.DetectionBatch, cfg.QueueCapacity),
		done:   make(chan struct{}),
	}
}

// Start opens the frame source and launches the stages. It returns once all
// stages are running, or an error wrapping domain.ErrSourceUnavailable when
// the source cannot be opened within the configured timeout.
func (c *Coordinator) Start(ctx context.Context) error {
	openCtx, cancel := context.WithTimeout(ctx, c.cfg.OpenTimeout)
	defer cancel()
	if err := c.source.Open(openCtx); err != nil {
		return fmt.Errorf("open frame source: %w (%v)", domain.ErrSourceUnavailable, err)
	}

	runCtx, runCancel := context.WithCancel(ctx)
	c.cancel = runCancel

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		c.captureLoop(runCtx)
	}()
	go func() {
		defer wg.Done()
		defer close(c.emitCh)
		c.inferLoop(runCtx)
	}()
	go func() {
		defer wg.Done()
		c.emitLoop()
	}()

	go func() {
		wg.Wait()
		close(c.done)
	}()
	c.started.Store(true)

	c.obs.LogInfo("pipeline_started",
		ports.Field{Key: "queue_capacity", Value: c.cfg.QueueCapacity},
		ports.Field{Key: "drop_policy", Value: string(c.cfg.Policy)})
	return nil
}

// Stop signals all stages to drain and waits for them to exit. Idempotent,
// and a no-op when Start never succeeded.
func (c *Coordinator) Stop() {
	if !c.started.Load() {
		return
	}
	c.stopOnce.Do(func() {
		c.cancel()
		<-c.done
		if err := c.source.Close(); err != nil {
			c.obs.LogError("frame_source_close_failed", err)
		}
		c.obs.LogInfo("pipeline_stopped",
			ports.Field{Key: "published", Value: c.stats.published.Load()},
			ports.Field{Key: "dropped", Value: c.stats.dropped.Load()})
	})
}

// Done is closed once every stage has exited, whether through Stop or a
// fatal source failure.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Err returns the fatal error that stopped the pipeline, if any.
func (c *Coordinator) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.fatalErr
}

func (c *Coordinator) fail(err error) {
	c.errMu.Lock()
	if c.fatalErr == nil {
		c.fatalErr = err
	}
	c.errMu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Coordinator) captureLoop(ctx context.Context) {
	var readFailures int
	for {
		if ctx.Err() != nil {
			return
		}

		frame, err := c.source.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			readFailures++
			if readFailures > c.cfg.ReadRetries {
				c.obs.LogError("frame_source_unavailable", err,
					ports.Field{Key: "retries", Value: readFailures - 1})
				c.fail(fmt.Errorf("capture: %w: %v", domain.ErrSourceUnavailable, err))
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.cfg.ReadRetryDelay):
			}
			continue
		}
		readFailures = 0
		c.stats.captured.Add(1)
		c.obs.IncCounter("edge_frames_captured_total", 1)

		if !c.admit(ctx, frame) {
			return
		}
	}
}

// admit applies the configured drop policy when the inference queue is full.
// Returns false only when the context was cancelled while blocking.
func (c *Coordinator) admit(ctx context.Context, frame *domain.Frame) bool {
	switch c.cfg.Policy {
	case DropOldest:
		if evicted := c.inferQ.PutEvict(frame); evicted != nil {
			c.stats.dropped.Add(1)
			c.obs.IncCounter("edge_frames_dropped_total", 1)
		}
		return true
	case DropNewest:
		if !c.inferQ.TryPut(frame) {
			c.stats.dropped.Add(1)
			c.obs.IncCounter("edge_frames_dropped_total", 1)
		}
		return true
	default: // Block
		for !c.inferQ.TryPut(frame) {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(c.cfg.IdleSleep):
			}
		}
		return true
	}
}

func (c *Coordinator) inferLoop(ctx context.Context) {
	var consecutiveFailures int
	for {
		frame := c.inferQ.Get()
		if frame == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.cfg.IdleSleep):
			}
			continue
		}

		start := time.Now()
		dets, err := c.infer.Infer(ctx, frame)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.stats.skipped.Add(1)
			c.obs.IncCounter("edge_frames_skipped_total", 1)
			c.obs.LogWarn("inference_failed",
				ports.Field{Key: "seq", Value: frame.Seq},
				ports.Field{Key: "error", Value: err.Error()})
			consecutiveFailures++
			if consecutiveFailures == c.cfg.DegradeAfter {
				c.stats.degraded.Store(true)
				c.obs.SetGauge("edge_inference_degraded", 1)
				c.obs.LogWarn("inference_degraded",
					ports.Field{Key: "consecutive_failures", Value: consecutiveFailures})
			}
			continue
		}
		if consecutiveFailures >= c.cfg.DegradeAfter {
			c.stats.degraded.Store(false)
			c.obs.SetGauge("edge_inference_degraded", 0)
		}
		consecutiveFailures = 0

		elapsed := time.Since(start)
		c.obs.ObserveLatency("edge_inference_latency_seconds", elapsed.Seconds())

		batch := domain.DetectionBatch{
			Seq:        frame.Seq,
			Timestamp:  frame.Timestamp,
			Latency:    elapsed,
			Detections: dets,
		}
		select {
		case c.emitCh <- batch:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Coordinator) emitLoop() {
	var lateStreak int
	for batch := range c.emitCh {
		if age := time.Since(batch.Timestamp); age > c.cfg.LatencyBudget {
			batch.Late = true
			c.stats.late.Add(1)
			c.obs.IncCounter("edge_batches_late_total", 1)
			lateStreak++
			if lateStreak == c.cfg.LateWarnStreak {
				c.obs.LogWarn("pipeline_running_late",
					ports.Field{Key: "streak", Value: lateStreak},
					ports.Field{Key: "last_latency_ms", Value: age.Milliseconds()})
				lateStreak = 0
			}
		} else {
			lateStreak = 0
		}

		c.emit(batch)
		c.stats.published.Add(1)
		c.stats.lastSeq.Store(batch.Seq)
		c.obs.IncCounter("edge_batches_published_total", 1)
	}
}
