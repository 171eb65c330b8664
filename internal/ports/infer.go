package ports

import (
	"context"

	"github.com/rtorresf4/vision-iot-pi5/internal/domain"
)

// Inference turns one frame into detections. Callers issue at most one call
// at a time; implementations are not required to be concurrency-safe.
type Inference interface {
	Infer(ctx context.Context, f *domain.Frame) ([]domain.Detection, error)
	Close() error
}
