package ports

import (
	"context"

	"github.com/rtorresf4/vision-iot-pi5/internal/domain"
)

// FrameSource wraps a camera device. Read may block on the physical device;
// implementations honor ctx cancellation and wrap persistent open failures
// in domain.ErrSourceUnavailable and per-read failures in domain.ErrReadTimeout.
type FrameSource interface {
	Open(ctx context.Context) error
	Read(ctx context.Context) (*domain.Frame, error)
	Close() error
}
