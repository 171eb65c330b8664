package ports

import (
	"context"

	"github.com/rtorresf4/vision-iot-pi5/internal/domain"
)

// SensorDriver reads one auxiliary sensor. A failed read returns an error
// wrapping domain.ErrSensorUnavailable; the polling loop decides what to
// publish in that case.
type SensorDriver interface {
	Kind() domain.SensorKind
	Read(ctx context.Context) (domain.SensorReading, error)
	Close() error
}
