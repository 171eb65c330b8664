package sensors

import (
	"context"
	"sync"
	"time"

	"github.com/rtorresf4/vision-iot-pi5/internal/domain"
	"github.com/rtorresf4/vision-iot-pi5/internal/ports"
)

// Entry pairs a driver with its polling interval. Sensors poll on
// independent cadences, bypassing the frame pipeline entirely.
type Entry struct {
	Driver   ports.SensorDriver
	Interval time.Duration
}

// Reader polls every configured sensor on its own goroutine. A failed read
// still emits a reading with OK=false so consumers see the gap; the loop
// never stops on per-reading errors.
type Reader struct {
	entries     []Entry
	readTimeout time.Duration
	emit        func(domain.SensorReading)
	obs         ports.Observability
	wg          sync.WaitGroup
}

func NewReader(entries []Entry, emit func(domain.SensorReading), obs ports.Observability) *Reader {
	return &Reader{
		entries:     entries,
		readTimeout: 5 * time.Second,
		emit:        emit,
		obs:         obs,
	}
}

// Run blocks until ctx is cancelled and every polling goroutine has exited.
func (r *Reader) Run(ctx context.Context) {
	for _, e := range r.entries {
		r.wg.Add(1)
		go func(e Entry) {
			defer r.wg.Done()
			r.poll(ctx, e)
		}(e)
	}
	r.wg.Wait()

	for _, e := range r.entries {
		if err := e.Driver.Close(); err != nil {
			r.obs.LogError("sensor_close_failed", err,
				ports.Field{Key: "kind", Value: string(e.Driver.Kind())})
		}
	}
}

func (r *Reader) poll(ctx context.Context, e Entry) {
	ticker := time.NewTicker(e.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.emit(r.readOne(ctx, e.Driver))
		}
	}
}

func (r *Reader) readOne(ctx context.Context, drv ports.SensorDriver) domain.SensorReading {
	readCtx, cancel := context.WithTimeout(ctx, r.readTimeout)
	defer cancel()

	reading, err := drv.Read(readCtx)
	if err != nil {
		r.obs.IncCounter("edge_sensor_read_failures_total", 1)
		r.obs.LogWarn("sensor_read_failed",
			ports.Field{Key: "kind", Value: string(drv.Kind())},
			ports.Field{Key: "error", Value: err.Error()})
		return domain.SensorReading{
			Kind:      drv.Kind(),
			Timestamp: time.Now(),
			OK:        false,
		}
	}
	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now()
	}
	reading.OK = true
	return reading
}
