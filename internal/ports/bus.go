package ports

import (
	"context"

	"github.com/rtorresf4/vision-iot-pi5/internal/domain"
)

// BusStats is a point-in-time view of the publisher's delivery accounting.
type BusStats struct {
	Sent       uint64
	Expired    uint64
	Dropped    uint64
	Reconnects uint64
	Connected  bool
}

// Publisher owns the single outbound bus connection. Publish never blocks on
// network I/O; delivery happens on the publisher's own loop.
type Publisher interface {
	Start() error
	Publish(msg domain.OutboundMessage)
	Stats() BusStats
	Shutdown(ctx context.Context) error
}
