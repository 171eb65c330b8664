package infer

import (
	"context"

	"github.com/rtorresf4/vision-iot-pi5/internal/domain"
	"github.com/rtorresf4/vision-iot-pi5/internal/ports"
)

// Static returns a fixed detection set for every frame. Used for dry runs
// without a model and as a stand-in in examples.
type Static struct {
	Detections []domain.Detection
}

func NewStatic(dets ...domain.Detection) *Static {
	return &Static{Detections: dets}
}

func (s *Static) Infer(ctx context.Context, f *domain.Frame) ([]domain.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Detections, nil
}

func (s *Static) Close() error { return nil }

var _ ports.Inference = (*Static)(nil)
