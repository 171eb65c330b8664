package telemetry

import (
	"context"
	"time"

	"github.com/rtorresf4/vision-iot-pi5/internal/app/pipeline"
	"github.com/rtorresf4/vision-iot-pi5/internal/domain"
	"github.com/rtorresf4/vision-iot-pi5/internal/ports"
)

// SystemProbe reads device health. Separated from the sampler so tests can
// substitute fixed values for the gopsutil-backed implementation.
type SystemProbe interface {
	CPUPercent() (float64, error)
	MemPercent() (float64, error)
	TemperatureC() (float64, error)
}

// Sampler periodically merges device health with the pipeline's counter
// snapshot and emits one TelemetrySample per tick, independent of frame flow.
type Sampler struct {
	interval time.Duration
	probe    SystemProbe
	snapshot func() pipeline.Snapshot
	emit     func(domain.TelemetrySample)
	obs      ports.Observability

	last     pipeline.Snapshot
	lastTick time.Time
}

func NewSampler(interval time.Duration, probe SystemProbe, snapshot func() pipeline.Snapshot, emit func(domain.TelemetrySample), obs ports.Observability) *Sampler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Sampler{
		interval: interval,
		probe:    probe,
		snapshot: snapshot,
		emit:     emit,
		obs:      obs,
	}
}

// Run blocks until ctx is cancelled, sampling once per interval.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.last = s.snapshot()
	s.lastTick = time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.emit(s.Sample())
		}
	}
}

// Sample builds one telemetry sample from the current readings. FPS is the
// publish rate observed since the previous sample.
func (s *Sampler) Sample() domain.TelemetrySample {
	now := time.Now()
	snap := s.snapshot()

	var fps float64
	if elapsed := now.Sub(s.lastTick).Seconds(); elapsed > 0 {
		fps = float64(snap.Published-s.last.Published) / elapsed
	}
	s.last = snap
	s.lastTick = now

	sample := domain.TelemetrySample{
		Timestamp:     now,
		FPS:           fps,
		DroppedFrames: snap.Dropped,
		QueueDepths: map[string]int{
			"inference": snap.InferDepth,
			"result":    snap.EmitDepth,
		},
	}

	if v, err := s.probe.CPUPercent(); err == nil {
		sample.CPUPct = v
	} else {
		s.obs.LogWarn("cpu_probe_failed", ports.Field{Key: "error", Value: err.Error()})
	}
	if v, err := s.probe.MemPercent(); err == nil {
		sample.MemPct = v
	} else {
		s.obs.LogWarn("mem_probe_failed", ports.Field{Key: "error", Value: err.Error()})
	}
	if v, err := s.probe.TemperatureC(); err == nil {
		sample.TempC = v
	}

	s.obs.SetGauge("edge_pipeline_fps", fps)
	s.obs.SetGauge("edge_inference_queue_depth", float64(snap.InferDepth))
	return sample
}
