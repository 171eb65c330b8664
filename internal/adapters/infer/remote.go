package infer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rtorresf4/vision-iot-pi5/internal/domain"
	"github.com/rtorresf4/vision-iot-pi5/internal/ports"
)

// RemoteConfig points at the Redis instance shared with an off-device
// inference worker.
type RemoteConfig struct {
	Addr    string
	Queue   string
	Timeout time.Duration
}

// Remote offloads inference to a worker over Redis: the frame is stored
// under a job key, the job id is pushed onto the worker queue, and the
// result is awaited on a per-job reply key. For edge devices too small to
// run the model locally.
type Remote struct {
	cfg RemoteConfig
	rdb *redis.Client
}

func NewRemote(cfg RemoteConfig) *Remote {
	if cfg.Queue == "" {
		cfg.Queue = "inference:jobs"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &Remote{
		cfg: cfg,
		rdb: redis.NewClient(&redis.Options{Addr: cfg.Addr}),
	}
}

type frameJob struct {
	ID     string `json:"id"`
	Seq    uint64 `json:"seq"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Data   []byte `json:"data"`
}

type remoteDetection struct {
	Class string     `json:"class"`
	Conf  float64    `json:"conf"`
	BBox  [4]float64 `json:"bbox"` // x, y, w, h
}

func (r *Remote) Infer(ctx context.Context, f *domain.Frame) ([]domain.Detection, error) {
	id := uuid.NewString()
	job, err := json.Marshal(frameJob{
		ID:     id,
		Seq:    f.Seq,
		Width:  f.Width,
		Height: f.Height,
		Data:   f.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal job: %v", domain.ErrInference, err)
	}

	// The frame key expires on its own so abandoned jobs do not pile up.
	if err := r.rdb.Set(ctx, "frame:"+id, job, 2*r.cfg.Timeout).Err(); err != nil {
		return nil, fmt.Errorf("%w: store frame: %v", domain.ErrInference, err)
	}
	if err := r.rdb.RPush(ctx, r.cfg.Queue, id).Err(); err != nil {
		return nil, fmt.Errorf("%w: enqueue job: %v", domain.ErrInference, err)
	}

	res, err := r.rdb.BLPop(ctx, r.cfg.Timeout, "predict:"+id).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: await result: %v", domain.ErrInference, err)
	}
	if len(res) < 2 {
		return nil, fmt.Errorf("%w: empty result", domain.ErrInference)
	}

	var raw []remoteDetection
	if err := json.Unmarshal([]byte(res[1]), &raw); err != nil {
		return nil, fmt.Errorf("%w: decode result: %v", domain.ErrInference, err)
	}

	dets := make([]domain.Detection, 0, len(raw))
	for _, d := range raw {
		dets = append(dets, domain.Detection{
			Label:      domain.LabelForClass(d.Class),
			Confidence: d.Conf,
			Box:        domain.BBox{X: d.BBox[0], Y: d.BBox[1], W: d.BBox[2], H: d.BBox[3]},
		})
	}
	return dets, nil
}

func (r *Remote) Close() error {
	return r.rdb.Close()
}

var _ ports.Inference = (*Remote)(nil)
