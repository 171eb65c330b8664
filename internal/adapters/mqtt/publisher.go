package mqtt

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rtorresf4/vision-iot-pi5/internal/domain"
	"github.com/rtorresf4/vision-iot-pi5/internal/ports"
)

// Config holds the broker connection and delivery-accounting settings.
// Online and Offline are the prebuilt retained status messages; Offline also
// registers as the broker-side last-will.
type Config struct {
	Endpoint string
	ClientID string
	Username string
	Password string

	Keepalive      time.Duration
	ConnectTimeout time.Duration
	ReconnectMin   time.Duration
	ReconnectMax   time.Duration
	Jitter         float64
	MaxMessageAge  time.Duration
	QueueSize      int
	ShutdownGrace  time.Duration

	Online  domain.OutboundMessage
	Offline domain.OutboundMessage
}

func (c *Config) applyDefaults() {
	if c.Keepalive <= 0 {
		c.Keepalive = 60 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.ReconnectMin <= 0 {
		c.ReconnectMin = time.Second
	}
	if c.ReconnectMax <= 0 {
		c.ReconnectMax = 30 * time.Second
	}
	if c.Jitter <= 0 {
		c.Jitter = 0.2
	}
	if c.MaxMessageAge <= 0 {
		c.MaxMessageAge = time.Minute
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 2 * time.Second
	}
}

const (
	stateReconnecting int32 = iota
	stateConnected
	stateStopped
)

// Publisher keeps exactly one logical broker connection alive and drains a
// bounded send queue onto it. Enqueue is the only cross-goroutine mutation
// point and is safe under concurrent callers.
type Publisher struct {
	cfg  Config
	dial dialFunc
	obs  ports.Observability

	sendCh chan domain.OutboundMessage
	lostCh chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}

	state      atomic.Int32
	sent       atomic.Uint64
	expired    atomic.Uint64
	dropped    atomic.Uint64
	reconnects atomic.Uint64

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
}

func New(cfg Config, obs ports.Observability) *Publisher {
	cfg.applyDefaults()
	p := newWithDialer(cfg, obs, nil)
	p.dial = pahoDialer(p.cfg)
	return p
}

func newWithDialer(cfg Config, obs ports.Observability, dial dialFunc) *Publisher {
	cfg.applyDefaults()
	return &Publisher{
		cfg:    cfg,
		dial:   dial,
		obs:    obs,
		sendCh: make(chan domain.OutboundMessage, cfg.QueueSize),
		lostCh: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the network loop. The first connect, like every reconnect,
// happens inside the loop so a dead broker never blocks pipeline startup.
func (p *Publisher) Start() error {
	p.startOnce.Do(func() {
		p.started.Store(true)
		go p.run()
	})
	return nil
}

// Publish enqueues the message and returns immediately. A full queue counts
// the message as dropped rather than blocking the caller.
func (p *Publisher) Publish(msg domain.OutboundMessage) {
	select {
	case p.sendCh <- msg:
	default:
		p.dropped.Add(1)
		p.obs.IncCounter("edge_bus_messages_dropped_total", 1)
	}
}

// Stats reports delivery accounting for the telemetry layer.
func (p *Publisher) Stats() ports.BusStats {
	return ports.BusStats{
		Sent:       p.sent.Load(),
		Expired:    p.expired.Load(),
		Dropped:    p.dropped.Load(),
		Reconnects: p.reconnects.Load(),
		Connected:  p.state.Load() == stateConnected,
	}
}

// Shutdown publishes OFFLINE within the grace period and closes the
// connection, so the broker never fires the last-will on a clean exit.
func (p *Publisher) Shutdown(ctx context.Context) error {
	if !p.started.Load() {
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
	select {
	case <-p.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Publisher) run() {
	defer close(p.doneCh)
	defer p.state.Store(stateStopped)

	bo := newBackoff(p.cfg.ReconnectMin, p.cfg.ReconnectMax, p.cfg.Jitter)
	var pending *domain.OutboundMessage

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		conn, err := p.dial(p.onConnectionLost)
		if err != nil {
			delay := bo.Next()
			p.obs.IncCounter("edge_bus_connect_failures_total", 1)
			p.obs.LogWarn("bus_connect_failed",
				ports.Field{Key: "error", Value: err.Error()},
				ports.Field{Key: "retry_in", Value: delay.String()})
			select {
			case <-p.stopCh:
				return
			case <-time.After(delay):
			}
			continue
		}

		bo.Reset()
		p.drainLostSignal()
		p.state.Store(stateConnected)
		p.reconnects.Add(1)
		p.obs.IncCounter("edge_bus_connects_total", 1)
		p.obs.LogInfo("bus_connected", ports.Field{Key: "endpoint", Value: p.cfg.Endpoint})

		if err := conn.Publish(p.cfg.Online.Topic, p.cfg.Online.QoS, true, p.cfg.Online.Payload); err != nil {
			p.obs.LogWarn("status_publish_failed", ports.Field{Key: "error", Value: err.Error()})
		}

		if stopped := p.pump(conn, &pending); stopped {
			p.closeCleanly(conn)
			return
		}

		p.state.Store(stateReconnecting)
		p.obs.LogWarn("bus_disconnected")
		conn.Disconnect(0)
	}
}

// pump drains the send queue onto the connection until the link breaks
// (returns false) or a stop is requested (returns true). An in-flight
// message that failed to send is parked in *pending and retried after the
// next reconnect, unless it expires first.
func (p *Publisher) pump(conn busConn, pending **domain.OutboundMessage) bool {
	for {
		if *pending != nil {
			msg := **pending
			if p.isExpired(msg) {
				p.expireOne()
				*pending = nil
				continue
			}
			if err := conn.Publish(msg.Topic, msg.QoS, msg.Retain, msg.Payload); err != nil {
				return false
			}
			p.sent.Add(1)
			p.obs.IncCounter("edge_bus_messages_sent_total", 1)
			*pending = nil
			continue
		}

		select {
		case msg := <-p.sendCh:
			*pending = &msg
		case <-p.lostCh:
			return false
		case <-p.stopCh:
			return true
		}
	}
}

func (p *Publisher) closeCleanly(conn busConn) {
	done := make(chan error, 1)
	go func() {
		offline := p.cfg.Offline
		done <- conn.Publish(offline.Topic, offline.QoS, true, offline.Payload)
	}()
	select {
	case err := <-done:
		if err != nil {
			p.obs.LogWarn("offline_publish_failed", ports.Field{Key: "error", Value: err.Error()})
		}
	case <-time.After(p.cfg.ShutdownGrace):
		p.obs.LogWarn("offline_publish_timeout")
	}
	conn.Disconnect(250 * time.Millisecond)
	p.obs.LogInfo("bus_closed")
}

func (p *Publisher) onConnectionLost(err error) {
	p.state.Store(stateReconnecting)
	if err != nil {
		p.obs.LogWarn("bus_connection_lost", ports.Field{Key: "error", Value: err.Error()})
	}
	select {
	case p.lostCh <- struct{}{}:
	default:
	}
}

func (p *Publisher) drainLostSignal() {
	select {
	case <-p.lostCh:
	default:
	}
}

func (p *Publisher) isExpired(msg domain.OutboundMessage) bool {
	return p.cfg.MaxMessageAge > 0 && time.Since(msg.Created) > p.cfg.MaxMessageAge
}

// expireOne counts an aged-out message. A resource-bound drop, not a
// failure: counted, not logged per occurrence.
func (p *Publisher) expireOne() {
	p.expired.Add(1)
	p.obs.IncCounter("edge_bus_messages_expired_total", 1)
}

var _ ports.Publisher = (*Publisher)(nil)
