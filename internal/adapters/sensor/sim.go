package sensor

import (
	"context"
	"math/rand"
	"time"

	"github.com/rtorresf4/vision-iot-pi5/internal/domain"
	"github.com/rtorresf4/vision-iot-pi5/internal/ports"
)

// Sim emits plausible values for development rigs without real sensors:
// a random walk for temperature/humidity, a sparse 0/1 signal for motion.
type Sim struct {
	kind  domain.SensorKind
	value float64
}

func NewSim(kind domain.SensorKind) *Sim {
	s := &Sim{kind: kind}
	switch kind {
	case domain.SensorTemperature:
		s.value = 21.0
	case domain.SensorHumidity:
		s.value = 45.0
	}
	return s
}

func (s *Sim) Kind() domain.SensorKind { return s.kind }

func (s *Sim) Read(ctx context.Context) (domain.SensorReading, error) {
	if err := ctx.Err(); err != nil {
		return domain.SensorReading{}, err
	}

	switch s.kind {
	case domain.SensorMotion:
		s.value = 0
		if rand.Float64() < 0.1 {
			s.value = 1
		}
	default:
		s.value += (rand.Float64() - 0.5) * 0.4
	}

	return domain.SensorReading{
		Kind:      s.kind,
		Value:     s.value,
		Timestamp: time.Now(),
	}, nil
}

func (s *Sim) Close() error { return nil }

var _ ports.SensorDriver = (*Sim)(nil)
