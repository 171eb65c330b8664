package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/rtorresf4/vision-iot-pi5/internal/app/pipeline"
	"github.com/rtorresf4/vision-iot-pi5/internal/domain"
)

// Duration lets config files use "150ms" / "10s" notation; yaml.v3 only
// decodes bare integers into time.Duration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	*d = Duration(n)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

type Config struct {
	Video     VideoConfig     `yaml:"video"`
	Model     ModelConfig     `yaml:"model"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Broker    BrokerConfig    `yaml:"broker"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Sensors   []SensorConfig  `yaml:"sensors"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type VideoConfig struct {
	Device    int  `yaml:"device"`
	Width     int  `yaml:"width"`
	Height    int  `yaml:"height"`
	FPS       int  `yaml:"fps"`
	Synthetic bool `yaml:"synthetic"`
}

type ModelConfig struct {
	Mode          string      `yaml:"mode"` // "onnx" or "remote"
	Path          string      `yaml:"path"`
	InputSize     int         `yaml:"input_size"`
	ConfThreshold float64     `yaml:"conf_threshold"`
	Classes       []string    `yaml:"classes"`
	Redis         RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr    string   `yaml:"addr"`
	Queue   string   `yaml:"queue"`
	Timeout Duration `yaml:"timeout"`
}

type PipelineConfig struct {
	QueueCapacity  int      `yaml:"queue_capacity"`
	DropPolicy     string   `yaml:"drop_policy"`
	LatencyBudget  Duration `yaml:"latency_budget"`
	OpenTimeout    Duration `yaml:"open_timeout"`
	ReadRetries    int      `yaml:"read_retries"`
	ReadRetryDelay Duration `yaml:"read_retry_delay"`
}

type BrokerConfig struct {
	Endpoint      string   `yaml:"endpoint"`
	ClientID      string   `yaml:"client_id"`
	Username      string   `yaml:"username"`
	Password      string   `yaml:"password"`
	BaseTopic     string   `yaml:"base_topic"`
	QoS           *int     `yaml:"qos"`
	Keepalive     Duration `yaml:"keepalive"`
	ReconnectMin  Duration `yaml:"reconnect_min"`
	ReconnectMax  Duration `yaml:"reconnect_max"`
	MessageMaxAge Duration `yaml:"message_max_age"`
	QueueSize     int      `yaml:"queue_size"`
	ShutdownGrace Duration `yaml:"shutdown_grace"`
}

type TelemetryConfig struct {
	Interval Duration `yaml:"interval"`
}

type SensorConfig struct {
	Kind     string   `yaml:"kind"`   // temperature, humidity, motion
	Driver   string   `yaml:"driver"` // "opcua" or "sim"
	Interval Duration `yaml:"interval"`
	Endpoint string   `yaml:"endpoint"`
	NodeID   string   `yaml:"node_id"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Video.Width == 0 {
		c.Video.Width = 640
	}
	if c.Video.Height == 0 {
		c.Video.Height = 480
	}
	if c.Video.FPS == 0 {
		c.Video.FPS = 15
	}
	if c.Model.Mode == "" {
		c.Model.Mode = "onnx"
	}
	if c.Model.InputSize == 0 {
		c.Model.InputSize = 640
	}
	if c.Model.ConfThreshold == 0 {
		c.Model.ConfThreshold = 0.5
	}
	if len(c.Model.Classes) == 0 {
		c.Model.Classes = []string{"ok", "defect"}
	}
	if c.Model.Redis.Queue == "" {
		c.Model.Redis.Queue = "inference:jobs"
	}
	if c.Model.Redis.Timeout == 0 {
		c.Model.Redis.Timeout = Duration(2 * time.Second)
	}
	if c.Pipeline.QueueCapacity == 0 {
		c.Pipeline.QueueCapacity = 4
	}
	if c.Pipeline.DropPolicy == "" {
		c.Pipeline.DropPolicy = string(pipeline.DropOldest)
	}
	if c.Pipeline.LatencyBudget == 0 {
		c.Pipeline.LatencyBudget = Duration(150 * time.Millisecond)
	}
	if c.Pipeline.OpenTimeout == 0 {
		c.Pipeline.OpenTimeout = Duration(10 * time.Second)
	}
	if c.Pipeline.ReadRetries == 0 {
		c.Pipeline.ReadRetries = 30
	}
	if c.Pipeline.ReadRetryDelay == 0 {
		c.Pipeline.ReadRetryDelay = Duration(20 * time.Millisecond)
	}
	if c.Broker.ClientID == "" {
		c.Broker.ClientID = "pi-detector-" + uuid.NewString()[:8]
	}
	if c.Broker.BaseTopic == "" {
		c.Broker.BaseTopic = "factory/line1"
	}
	if c.Broker.QoS == nil {
		qos := 1
		c.Broker.QoS = &qos
	}
	if c.Broker.Keepalive == 0 {
		c.Broker.Keepalive = Duration(60 * time.Second)
	}
	if c.Broker.ReconnectMin == 0 {
		c.Broker.ReconnectMin = Duration(time.Second)
	}
	if c.Broker.ReconnectMax == 0 {
		c.Broker.ReconnectMax = Duration(30 * time.Second)
	}
	if c.Broker.MessageMaxAge == 0 {
		c.Broker.MessageMaxAge = Duration(time.Minute)
	}
	if c.Broker.QueueSize == 0 {
		c.Broker.QueueSize = 256
	}
	if c.Broker.ShutdownGrace == 0 {
		c.Broker.ShutdownGrace = Duration(2 * time.Second)
	}
	if c.Telemetry.Interval == 0 {
		c.Telemetry.Interval = Duration(5 * time.Second)
	}
	for i := range c.Sensors {
		if c.Sensors[i].Driver == "" {
			c.Sensors[i].Driver = "sim"
		}
		if c.Sensors[i].Interval == 0 {
			c.Sensors[i].Interval = Duration(10 * time.Second)
		}
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
}

func (c *Config) Validate() error {
	if !pipeline.ValidPolicy(c.Pipeline.DropPolicy) {
		return fmt.Errorf("pipeline.drop_policy %q is not one of drop-oldest, drop-newest, block", c.Pipeline.DropPolicy)
	}
	switch c.Model.Mode {
	case "onnx":
		if !c.Video.Synthetic && c.Model.Path == "" {
			return fmt.Errorf("model.path is required in onnx mode")
		}
	case "remote":
		if c.Model.Redis.Addr == "" {
			return fmt.Errorf("model.redis.addr is required in remote mode")
		}
	default:
		return fmt.Errorf("model.mode %q is not one of onnx, remote", c.Model.Mode)
	}
	if c.Broker.Endpoint == "" {
		return fmt.Errorf("broker.endpoint is required")
	}
	if c.Broker.QoS == nil || *c.Broker.QoS < 0 || *c.Broker.QoS > 2 {
		return fmt.Errorf("broker.qos must be 0, 1, or 2")
	}
	if c.Broker.ReconnectMax < c.Broker.ReconnectMin {
		return fmt.Errorf("broker.reconnect_max must be >= broker.reconnect_min")
	}
	for _, s := range c.Sensors {
		switch domain.SensorKind(s.Kind) {
		case domain.SensorTemperature, domain.SensorHumidity, domain.SensorMotion:
		default:
			return fmt.Errorf("sensor kind %q is not one of temperature, humidity, motion", s.Kind)
		}
		switch s.Driver {
		case "sim":
		case "opcua":
			if s.Endpoint == "" || s.NodeID == "" {
				return fmt.Errorf("opcua sensor %q needs endpoint and node_id", s.Kind)
			}
		default:
			return fmt.Errorf("sensor driver %q is not one of opcua, sim", s.Driver)
		}
	}
	if c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required")
	}
	return nil
}
