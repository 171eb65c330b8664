package edge

import (
	"github.com/rtorresf4/vision-iot-pi5/internal/app/config"
	"github.com/rtorresf4/vision-iot-pi5/internal/app/pipeline"
	"github.com/rtorresf4/vision-iot-pi5/internal/app/sensors"
	"github.com/rtorresf4/vision-iot-pi5/internal/domain"
	"github.com/rtorresf4/vision-iot-pi5/internal/ports"
)

// Config re-exports the root configuration struct so embedding projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	VideoConfig     = config.VideoConfig
	ModelConfig     = config.ModelConfig
	PipelineConfig  = config.PipelineConfig
	BrokerConfig    = config.BrokerConfig
	TelemetryConfig = config.TelemetryConfig
	SensorConfig    = config.SensorConfig
	MetricsConfig   = config.MetricsConfig
)

// Data model aliases for custom adapters.
type (
	Frame           = domain.Frame
	Detection       = domain.Detection
	DetectionBatch  = domain.DetectionBatch
	TelemetrySample = domain.TelemetrySample
	SensorReading   = domain.SensorReading
	OutboundMessage = domain.OutboundMessage
	Label           = domain.Label
)

// Port aliases so callers can plug their own camera, model, sensors, bus
// client, or telemetry backend.
type (
	FrameSource   = ports.FrameSource
	Inference     = ports.Inference
	SensorDriver  = ports.SensorDriver
	Publisher     = ports.Publisher
	Observability = ports.Observability
	Field         = ports.Field
	BusStats      = ports.BusStats
)

// SensorEntry pairs a driver with its polling interval.
type SensorEntry = sensors.Entry

// PipelineSnapshot is the read-only view of the coordinator's counters.
type PipelineSnapshot = pipeline.Snapshot

// LoadConfig loads and validates YAML from disk.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}
