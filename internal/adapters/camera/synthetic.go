package camera

import (
	"context"
	"time"

	"github.com/rtorresf4/vision-iot-pi5/internal/domain"
	"github.com/rtorresf4/vision-iot-pi5/internal/ports"
)

// Synthetic generates deterministic frames at a fixed rate, for running the
// pipeline on machines without a camera.
type Synthetic struct {
	width    int
	height   int
	interval time.Duration
	seq      uint64
}

func NewSynthetic(width, height, fps int) *Synthetic {
	if fps <= 0 {
		fps = 15
	}
	return &Synthetic{
		width:    width,
		height:   height,
		interval: time.Second / time.Duration(fps),
	}
}

func (s *Synthetic) Open(ctx context.Context) error { return nil }

func (s *Synthetic) Read(ctx context.Context) (*domain.Frame, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.interval):
	}

	s.seq++
	data := make([]byte, s.width*s.height*3)
	// A gray field with a vertical band that walks across the frame, so a
	// live view shows motion.
	band := int(s.seq) % s.width
	for y := 0; y < s.height; y++ {
		row := y * s.width * 3
		for x := 0; x < s.width; x++ {
			v := byte(96)
			if x >= band && x < band+8 {
				v = 224
			}
			off := row + x*3
			data[off], data[off+1], data[off+2] = v, v, v
		}
	}

	return &domain.Frame{
		Seq:       s.seq,
		Timestamp: time.Now(),
		Data:      data,
		Width:     s.width,
		Height:    s.height,
	}, nil
}

func (s *Synthetic) Close() error { return nil }

var _ ports.FrameSource = (*Synthetic)(nil)
