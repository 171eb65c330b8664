package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/rtorresf4/vision-iot-pi5/internal/ports"
)

// PromObs backs the Observability port with Prometheus metrics and zap
// structured logs.
type PromObs struct {
	logger   *zap.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// New registers the edge metrics on the default registry.
func New(logger *zap.Logger) *PromObs {
	return NewWithRegistry(logger, prometheus.DefaultRegisterer)
}

// NewWithRegistry lets tests use an isolated registry.
func NewWithRegistry(logger *zap.Logger, reg prometheus.Registerer) *PromObs {
	counters := map[string]prometheus.Counter{}
	for name, help := range map[string]string{
		"edge_frames_captured_total":      "Frames read from the camera.",
		"edge_frames_dropped_total":       "Frames discarded by the drop policy.",
		"edge_frames_skipped_total":       "Frames skipped after a failed inference call.",
		"edge_batches_published_total":    "Detection batches handed to the publisher.",
		"edge_batches_late_total":         "Batches that exceeded the latency budget.",
		"edge_bus_connects_total":         "Successful broker connects.",
		"edge_bus_connect_failures_total": "Failed broker connect attempts.",
		"edge_bus_messages_sent_total":    "Messages delivered to the broker.",
		"edge_bus_messages_expired_total": "Messages aged out while disconnected.",
		"edge_bus_messages_dropped_total": "Messages rejected by a full send queue.",
		"edge_sensor_read_failures_total": "Failed auxiliary sensor reads.",
	} {
		c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
		reg.MustRegister(c)
		counters[name] = c
	}

	gauges := map[string]prometheus.Gauge{}
	for name, help := range map[string]string{
		"edge_pipeline_fps":          "Observed publish rate.",
		"edge_inference_queue_depth": "Frames waiting for inference.",
		"edge_inference_degraded":    "1 while inference keeps failing, else 0.",
	} {
		g := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
		reg.MustRegister(g)
		gauges[name] = g
	}

	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "edge_inference_latency_seconds",
		Help:    "Per-frame inference latency.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
	})
	reg.MustRegister(latency)

	if logger == nil {
		logger = zap.NewNop()
	}

	return &PromObs{
		logger:   logger,
		counters: counters,
		gauges:   gauges,
		histos: map[string]prometheus.Observer{
			"edge_inference_latency_seconds": latency,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.logger.Info(msg, zapFields(fields)...)
}

func (p *PromObs) LogWarn(msg string, fields ...ports.Field) {
	p.logger.Warn(msg, zapFields(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.logger.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func zapFields(fields []ports.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
