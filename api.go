package vision

import (
	base "github.com/rtorresf4/vision-iot-pi5/pkg/edge"
)

// Type aliases so consumers can import github.com/rtorresf4/vision-iot-pi5
// directly.
type (
	Config          = base.Config
	VideoConfig     = base.VideoConfig
	ModelConfig     = base.ModelConfig
	PipelineConfig  = base.PipelineConfig
	BrokerConfig    = base.BrokerConfig
	TelemetryConfig = base.TelemetryConfig
	SensorConfig    = base.SensorConfig
	MetricsConfig   = base.MetricsConfig

	Frame            = base.Frame
	Detection        = base.Detection
	DetectionBatch   = base.DetectionBatch
	TelemetrySample  = base.TelemetrySample
	SensorReading    = base.SensorReading
	OutboundMessage  = base.OutboundMessage
	Label            = base.Label
	PipelineSnapshot = base.PipelineSnapshot
	BusStats         = base.BusStats

	FrameSource   = base.FrameSource
	Inference     = base.Inference
	SensorDriver  = base.SensorDriver
	Publisher     = base.Publisher
	Observability = base.Observability
	SensorEntry   = base.SensorEntry

	Runtime = base.Runtime
	Option  = base.Option
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

// Runtime builder helpers.
func NewRuntime(cfg *Config, opts ...Option) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithFrameSource(src FrameSource) Option { return base.WithFrameSource(src) }

func WithInference(inf Inference) Option { return base.WithInference(inf) }

func WithPublisher(p Publisher) Option { return base.WithPublisher(p) }

func WithSensors(entries ...SensorEntry) Option { return base.WithSensors(entries...) }

func WithObservability(obs Observability) Option { return base.WithObservability(obs) }
