package camera

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/rtorresf4/vision-iot-pi5/internal/domain"
	"github.com/rtorresf4/vision-iot-pi5/internal/ports"
)

// Config captures the V4L2/UVC device settings.
type Config struct {
	Device int
	Width  int
	Height int
	FPS    int
}

// Source wraps a physical camera. Frames get strictly increasing sequence
// numbers; a read that returns no image is reported as ReadTimeout and left
// to the capture stage's retry policy.
type Source struct {
	cfg Config

	mu   sync.Mutex
	cap  *gocv.VideoCapture
	img  gocv.Mat
	seq  uint64
	open bool
}

func NewSource(cfg Config) *Source {
	return &Source{cfg: cfg}
}

// Open connects to the device. The underlying open call can hang on a
// misbehaving camera, so it runs under the caller's deadline.
func (s *Source) Open(ctx context.Context) error {
	type result struct {
		cap *gocv.VideoCapture
		err error
	}
	ch := make(chan result, 1)
	go func() {
		cap, err := gocv.VideoCaptureDevice(s.cfg.Device)
		ch <- result{cap, err}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("open /dev/video%d: %w", s.cfg.Device, ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return fmt.Errorf("open /dev/video%d: %w", s.cfg.Device, r.err)
		}
		if !r.cap.IsOpened() {
			_ = r.cap.Close()
			return fmt.Errorf("open /dev/video%d: device not opened", s.cfg.Device)
		}
		if s.cfg.Width > 0 {
			r.cap.Set(gocv.VideoCaptureFrameWidth, float64(s.cfg.Width))
		}
		if s.cfg.Height > 0 {
			r.cap.Set(gocv.VideoCaptureFrameHeight, float64(s.cfg.Height))
		}
		if s.cfg.FPS > 0 {
			r.cap.Set(gocv.VideoCaptureFPS, float64(s.cfg.FPS))
		}

		s.mu.Lock()
		s.cap = r.cap
		s.img = gocv.NewMat()
		s.open = true
		s.mu.Unlock()
		return nil
	}
}

func (s *Source) Read(ctx context.Context) (*domain.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil, fmt.Errorf("read: %w: source closed", domain.ErrSourceUnavailable)
	}

	if ok := s.cap.Read(&s.img); !ok || s.img.Empty() {
		return nil, fmt.Errorf("read /dev/video%d: %w", s.cfg.Device, domain.ErrReadTimeout)
	}

	s.seq++
	return &domain.Frame{
		Seq:       s.seq,
		Timestamp: time.Now(),
		Data:      s.img.ToBytes(),
		Width:     s.img.Cols(),
		Height:    s.img.Rows(),
	}, nil
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	s.open = false
	if err := s.img.Close(); err != nil {
		return err
	}
	return s.cap.Close()
}

var _ ports.FrameSource = (*Source)(nil)
