package edge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rtorresf4/vision-iot-pi5/internal/adapters/camera"
	"github.com/rtorresf4/vision-iot-pi5/internal/adapters/infer"
	"github.com/rtorresf4/vision-iot-pi5/internal/adapters/mqtt"
	"github.com/rtorresf4/vision-iot-pi5/internal/adapters/observability"
	"github.com/rtorresf4/vision-iot-pi5/internal/adapters/sensor"
	"github.com/rtorresf4/vision-iot-pi5/internal/app/pipeline"
	"github.com/rtorresf4/vision-iot-pi5/internal/app/router"
	"github.com/rtorresf4/vision-iot-pi5/internal/app/sensors"
	"github.com/rtorresf4/vision-iot-pi5/internal/app/telemetry"
	"github.com/rtorresf4/vision-iot-pi5/internal/domain"
	"github.com/rtorresf4/vision-iot-pi5/internal/ports"
)

// Runtime wires the capture → inference → publish pipeline together with
// the telemetry sampler, sensor polling, and the metrics endpoint, and
// exposes simple lifecycle hooks for embedding the detector in any Go
// service.
type Runtime struct {
	cfg *Config
	obs ports.Observability

	source    ports.FrameSource
	inference ports.Inference
	publisher ports.Publisher

	route *router.Router
	coord *pipeline.Coordinator

	sampler *telemetry.Sampler
	reader  *sensors.Reader

	metricsSrv *http.Server
	loopCancel context.CancelFunc
	loopWG     sync.WaitGroup
}

// NewRuntime bootstraps the default adapters (gocv camera, ONNX inference,
// MQTT publisher, Prometheus observability) from the config. Options
// override any dependency.
func NewRuntime(cfg *Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg.ApplyDefaults()

	var o overrides
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	obs := o.obs
	if obs == nil {
		logger, err := zap.NewProduction()
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
		obs = observability.New(logger.Named("edge"))
	}

	route := router.New(cfg.Broker.BaseTopic, byte(*cfg.Broker.QoS))

	pub := o.publisher
	if pub == nil {
		pub = mqtt.New(mqtt.Config{
			Endpoint:      cfg.Broker.Endpoint,
			ClientID:      cfg.Broker.ClientID,
			Username:      cfg.Broker.Username,
			Password:      cfg.Broker.Password,
			Keepalive:     cfg.Broker.Keepalive.Std(),
			ReconnectMin:  cfg.Broker.ReconnectMin.Std(),
			ReconnectMax:  cfg.Broker.ReconnectMax.Std(),
			MaxMessageAge: cfg.Broker.MessageMaxAge.Std(),
			QueueSize:     cfg.Broker.QueueSize,
			ShutdownGrace: cfg.Broker.ShutdownGrace.Std(),
			Online:        route.StatusMessage(domain.StatusOnline),
			Offline:       route.StatusMessage(domain.StatusOffline),
		}, obs)
	}

	source := o.source
	if source == nil {
		if cfg.Video.Synthetic {
			source = camera.NewSynthetic(cfg.Video.Width, cfg.Video.Height, cfg.Video.FPS)
		} else {
			source = camera.NewSource(camera.Config{
				Device: cfg.Video.Device,
				Width:  cfg.Video.Width,
				Height: cfg.Video.Height,
				FPS:    cfg.Video.FPS,
			})
		}
	}

	inference := o.infer
	if inference == nil {
		var err error
		inference, err = buildInference(cfg)
		if err != nil {
			return nil, err
		}
	}

	entries := o.sensors
	if entries == nil {
		var err error
		entries, err = buildSensors(cfg)
		if err != nil {
			return nil, err
		}
	}

	rt := &Runtime{
		cfg:       cfg,
		obs:       obs,
		source:    source,
		inference: inference,
		publisher: pub,
		route:     route,
	}

	rt.coord = pipeline.New(pipeline.Config{
		QueueCapacity:  cfg.Pipeline.QueueCapacity,
		Policy:         pipeline.DropPolicy(cfg.Pipeline.DropPolicy),
		LatencyBudget:  cfg.Pipeline.LatencyBudget.Std(),
		OpenTimeout:    cfg.Pipeline.OpenTimeout.Std(),
		ReadRetries:    cfg.Pipeline.ReadRetries,
		ReadRetryDelay: cfg.Pipeline.ReadRetryDelay.Std(),
	}, source, inference, rt.emitBatch, obs)

	rt.sampler = telemetry.NewSampler(cfg.Telemetry.Interval.Std(), telemetry.NewGopsutilProbe(),
		rt.coord.Snapshot, rt.emitTelemetry, obs)
	rt.reader = sensors.NewReader(entries, rt.emitSensor, obs)

	return rt, nil
}

func buildInference(cfg *Config) (ports.Inference, error) {
	switch cfg.Model.Mode {
	case "remote":
		return infer.NewRemote(infer.RemoteConfig{
			Addr:    cfg.Model.Redis.Addr,
			Queue:   cfg.Model.Redis.Queue,
			Timeout: cfg.Model.Redis.Timeout.Std(),
		}), nil
	default:
		if cfg.Model.Path == "" {
			// Synthetic dry run without a model.
			return infer.NewStatic(), nil
		}
		return infer.NewONNX(infer.ONNXConfig{
			ModelPath:     cfg.Model.Path,
			InputSize:     cfg.Model.InputSize,
			ConfThreshold: cfg.Model.ConfThreshold,
			Classes:       cfg.Model.Classes,
		})
	}
}

func buildSensors(cfg *Config) ([]sensors.Entry, error) {
	entries := make([]sensors.Entry, 0, len(cfg.Sensors))
	for _, sc := range cfg.Sensors {
		kind := domain.SensorKind(sc.Kind)
		var (
			drv ports.SensorDriver
			err error
		)
		switch sc.Driver {
		case "opcua":
			drv, err = sensor.NewOPCUA(sensor.OPCUAConfig{
				Endpoint: sc.Endpoint,
				NodeID:   sc.NodeID,
				Kind:     kind,
			})
			if err != nil {
				return nil, fmt.Errorf("sensor %s: %w", sc.Kind, err)
			}
		default:
			drv = sensor.NewSim(kind)
		}
		entries = append(entries, sensors.Entry{Driver: drv, Interval: sc.Interval.Std()})
	}
	return entries, nil
}

func (r *Runtime) emitBatch(b domain.DetectionBatch) {
	msg, err := r.route.Route(b)
	if err != nil {
		r.obs.LogError("route_failed", err)
		return
	}
	r.publisher.Publish(msg)
}

func (r *Runtime) emitTelemetry(s domain.TelemetrySample) {
	msg, err := r.route.Route(s)
	if err != nil {
		r.obs.LogError("route_failed", err)
		return
	}
	r.publisher.Publish(msg)
}

func (r *Runtime) emitSensor(s domain.SensorReading) {
	msg, err := r.route.Route(s)
	if err != nil {
		r.obs.LogError("route_failed", err)
		return
	}
	r.publisher.Publish(msg)
}

// Start launches the publisher, the pipeline, the periodic loops, and the
// metrics server. It returns once everything is running; call Run to block
// on a context instead.
func (r *Runtime) Start(ctx context.Context) error {
	if err := r.publisher.Start(); err != nil {
		return err
	}
	if err := r.coord.Start(ctx); err != nil {
		// Retract the retained ONLINE before reporting the failure.
		stopCtx, cancel := context.WithTimeout(context.Background(), r.cfg.Broker.ShutdownGrace.Std())
		defer cancel()
		if perr := r.publisher.Shutdown(stopCtx); perr != nil {
			r.obs.LogError("publisher_shutdown_failed", perr)
		}
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	r.loopCancel = cancel
	r.loopWG.Add(2)
	go func() {
		defer r.loopWG.Done()
		r.sampler.Run(loopCtx)
	}()
	go func() {
		defer r.loopWG.Done()
		r.reader.Run(loopCtx)
	}()

	r.startMetrics()
	return nil
}

// Run starts the runtime and blocks until the context is cancelled or the
// pipeline hits a fatal fault, then shuts down gracefully. The returned
// error is non-nil only for fatal faults.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-r.coord.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.Shutdown(shutdownCtx); err != nil {
		r.obs.LogError("shutdown_incomplete", err)
	}
	return r.coord.Err()
}

// Shutdown stops the pipeline and periodic loops, flushes the OFFLINE
// status through the publisher, and closes everything else.
func (r *Runtime) Shutdown(ctx context.Context) error {
	var errs []error

	r.coord.Stop()

	if r.loopCancel != nil {
		r.loopCancel()
		r.loopWG.Wait()
	}

	if err := r.inference.Close(); err != nil {
		errs = append(errs, err)
	}

	// Publisher goes last so the explicit OFFLINE beats the disconnect.
	if err := r.publisher.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}

	if r.metricsSrv != nil {
		if err := r.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Snapshot exposes the pipeline counters, e.g. for a health endpoint.
func (r *Runtime) Snapshot() PipelineSnapshot {
	return r.coord.Snapshot()
}

// BusStats exposes the publisher's delivery accounting.
func (r *Runtime) BusStats() BusStats {
	return r.publisher.Stats()
}

func (r *Runtime) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.metricsSrv = &http.Server{
		Addr:    r.cfg.Metrics.Addr,
		Handler: mux,
	}

	go func() {
		if err := r.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.obs.LogError("metrics_server_exited", err)
		}
	}()
}
