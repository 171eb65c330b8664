package sensors

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rtorresf4/vision-iot-pi5/internal/domain"
	"github.com/rtorresf4/vision-iot-pi5/internal/ports"
)

func TestReaderPollsAndStampsReadings(t *testing.T) {
	drv := &fakeDriver{kind: domain.SensorTemperature, value: 21.5}
	sink := &readingSink{}

	r := NewReader([]Entry{{Driver: drv, Interval: 5 * time.Millisecond}}, sink.collect, &fakeObs{})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	r.Run(ctx)

	readings := sink.snapshot()
	if len(readings) < 3 {
		t.Fatalf("expected several readings, got %d", len(readings))
	}
	for _, rd := range readings {
		if rd.Kind != domain.SensorTemperature || rd.Value != 21.5 {
			t.Fatalf("unexpected reading: %+v", rd)
		}
		if !rd.OK {
			t.Fatalf("healthy driver must produce OK readings: %+v", rd)
		}
		if rd.Timestamp.IsZero() {
			t.Fatalf("reading must carry a timestamp")
		}
	}
	if drv.closeCount() != 1 {
		t.Fatalf("driver should be closed once, got %d", drv.closeCount())
	}
}

func TestReaderEmitsFailedReadsAndKeepsPolling(t *testing.T) {
	drv := &fakeDriver{kind: domain.SensorHumidity, err: domain.ErrSensorUnavailable}
	sink := &readingSink{}
	obs := &fakeObs{}

	r := NewReader([]Entry{{Driver: drv, Interval: 5 * time.Millisecond}}, sink.collect, obs)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	r.Run(ctx)

	readings := sink.snapshot()
	if len(readings) < 3 {
		t.Fatalf("failing driver must not stop the loop, got %d readings", len(readings))
	}
	for _, rd := range readings {
		if rd.OK {
			t.Fatalf("failed read must be flagged: %+v", rd)
		}
		if rd.Kind != domain.SensorHumidity {
			t.Fatalf("failed reading must keep its kind: %+v", rd)
		}
	}
	if obs.counter("edge_sensor_read_failures_total") == 0 {
		t.Fatalf("expected read failures to be counted")
	}
}

func TestReaderRunsEachSensorIndependently(t *testing.T) {
	fast := &fakeDriver{kind: domain.SensorTemperature, value: 20}
	slow := &fakeDriver{kind: domain.SensorMotion, value: 1}
	sink := &readingSink{}

	r := NewReader([]Entry{
		{Driver: fast, Interval: 5 * time.Millisecond},
		{Driver: slow, Interval: 25 * time.Millisecond},
	}, sink.collect, &fakeObs{})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	r.Run(ctx)

	var fastN, slowN int
	for _, rd := range sink.snapshot() {
		switch rd.Kind {
		case domain.SensorTemperature:
			fastN++
		case domain.SensorMotion:
			slowN++
		}
	}
	if fastN <= slowN {
		t.Fatalf("faster cadence should produce more readings: fast=%d slow=%d", fastN, slowN)
	}
	if slowN == 0 {
		t.Fatalf("slow sensor never polled")
	}
}

type fakeDriver struct {
	mu     sync.Mutex
	kind   domain.SensorKind
	value  float64
	err    error
	closes int
}

func (d *fakeDriver) Kind() domain.SensorKind { return d.kind }

func (d *fakeDriver) Read(context.Context) (domain.SensorReading, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return domain.SensorReading{}, d.err
	}
	return domain.SensorReading{Kind: d.kind, Value: d.value}, nil
}

func (d *fakeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	return nil
}

func (d *fakeDriver) closeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

type readingSink struct {
	mu       sync.Mutex
	readings []domain.SensorReading
}

func (s *readingSink) collect(r domain.SensorReading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, r)
}

func (s *readingSink) snapshot() []domain.SensorReading {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SensorReading, len(s.readings))
	copy(out, s.readings)
	return out
}

type fakeObs struct {
	mu       sync.Mutex
	counters map[string]float64
}

func (o *fakeObs) LogInfo(string, ...ports.Field)         {}
func (o *fakeObs) LogWarn(string, ...ports.Field)         {}
func (o *fakeObs) LogError(string, error, ...ports.Field) {}

func (o *fakeObs) IncCounter(name string, v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counters == nil {
		o.counters = make(map[string]float64)
	}
	o.counters[name] += v
}

func (o *fakeObs) SetGauge(string, float64)       {}
func (o *fakeObs) ObserveLatency(string, float64) {}

func (o *fakeObs) counter(name string) float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counters[name]
}
