package sensor

import (
	"context"
	"testing"

	"github.com/rtorresf4/vision-iot-pi5/internal/domain"
)

func TestSimTemperatureWalksNearBaseline(t *testing.T) {
	s := NewSim(domain.SensorTemperature)

	for i := 0; i < 100; i++ {
		r, err := s.Read(context.Background())
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if r.Kind != domain.SensorTemperature {
			t.Fatalf("unexpected kind %q", r.Kind)
		}
		// Random walk of ±0.2 per step can drift at most 20 over 100 steps.
		if r.Value < 1 || r.Value > 41 {
			t.Fatalf("temperature drifted implausibly: %f", r.Value)
		}
	}
}

func TestSimMotionIsBinary(t *testing.T) {
	s := NewSim(domain.SensorMotion)

	for i := 0; i < 100; i++ {
		r, err := s.Read(context.Background())
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if r.Value != 0 && r.Value != 1 {
			t.Fatalf("motion must be 0 or 1, got %f", r.Value)
		}
	}
}

func TestSimReadHonorsContext(t *testing.T) {
	s := NewSim(domain.SensorHumidity)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Read(ctx); err == nil {
		t.Fatalf("expected context error")
	}
}
