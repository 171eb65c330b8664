package edge

// Option customizes the dependencies used by Runtime.
type Option func(*overrides)

type overrides struct {
	source    FrameSource
	infer     Inference
	publisher Publisher
	sensors   []SensorEntry
	obs       Observability
}

// WithFrameSource injects a custom camera implementation (RTSP, file
// replay, simulators, etc.).
func WithFrameSource(src FrameSource) Option {
	return func(o *overrides) {
		o.source = src
	}
}

// WithInference injects a custom inference engine.
func WithInference(inf Inference) Option {
	return func(o *overrides) {
		o.infer = inf
	}
}

// WithPublisher replaces the MQTT publisher, e.g. for a different bus.
func WithPublisher(p Publisher) Option {
	return func(o *overrides) {
		o.publisher = p
	}
}

// WithSensors replaces the configured sensor set.
func WithSensors(entries ...SensorEntry) Option {
	return func(o *overrides) {
		o.sensors = entries
	}
}

// WithObservability plugs in a custom metrics/logging backend.
func WithObservability(obs Observability) Option {
	return func(o *overrides) {
		o.obs = obs
	}
}
