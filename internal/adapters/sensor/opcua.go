package sensor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"

	"github.com/rtorresf4/vision-iot-pi5/internal/domain"
	"github.com/rtorresf4/vision-iot-pi5/internal/ports"
)

// OPCUAConfig addresses one value node on a PLC or gateway server.
type OPCUAConfig struct {
	Endpoint string
	NodeID   string
	Kind     domain.SensorKind
	Username string
	Password string
}

// OPCUA reads a factory-line sensor exposed as an OPC UA node. The client
// connects lazily on first read and reconnects after failures.
type OPCUA struct {
	cfg    OPCUAConfig
	nodeID *ua.NodeID

	mu     sync.Mutex
	client *opcua.Client
}

func NewOPCUA(cfg OPCUAConfig) (*OPCUA, error) {
	nodeID, err := ua.ParseNodeID(cfg.NodeID)
	if err != nil {
		return nil, fmt.Errorf("parse node id %q: %w", cfg.NodeID, err)
	}
	return &OPCUA{cfg: cfg, nodeID: nodeID}, nil
}

func (o *OPCUA) Kind() domain.SensorKind { return o.cfg.Kind }

func (o *OPCUA) Read(ctx context.Context) (domain.SensorReading, error) {
	client, err := o.connected(ctx)
	if err != nil {
		return domain.SensorReading{}, fmt.Errorf("%w: %s: %v", domain.ErrSensorUnavailable, o.cfg.Kind, err)
	}

	req := &ua.ReadRequest{
		MaxAge:             2000,
		TimestampsToReturn: ua.TimestampsToReturnServer,
		NodesToRead: []*ua.ReadValueID{
			{NodeID: o.nodeID},
		},
	}
	resp, err := client.Read(ctx, req)
	if err != nil {
		o.dropClient(ctx)
		return domain.SensorReading{}, fmt.Errorf("%w: %s: read: %v", domain.ErrSensorUnavailable, o.cfg.Kind, err)
	}
	if len(resp.Results) == 0 || resp.Results[0].Status != ua.StatusOK {
		return domain.SensorReading{}, fmt.Errorf("%w: %s: bad read status", domain.ErrSensorUnavailable, o.cfg.Kind)
	}

	value, ok := variantToFloat(resp.Results[0].Value)
	if !ok {
		return domain.SensorReading{}, fmt.Errorf("%w: %s: unsupported value type", domain.ErrSensorUnavailable, o.cfg.Kind)
	}

	ts := resp.Results[0].ServerTimestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return domain.SensorReading{
		Kind:      o.cfg.Kind,
		Value:     value,
		Timestamp: ts,
	}, nil
}

func (o *OPCUA) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := o.client.Close(ctx)
	o.client = nil
	return err
}

func (o *OPCUA) connected(ctx context.Context) (*opcua.Client, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.client != nil {
		return o.client, nil
	}

	opts := []opcua.Option{
		opcua.SecurityMode(ua.MessageSecurityModeNone),
		opcua.SecurityPolicy("None"),
	}
	if o.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(o.cfg.Username, o.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}

	client, err := opcua.NewClient(o.cfg.Endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("new client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect %s: %w", o.cfg.Endpoint, err)
	}
	o.client = client
	return client, nil
}

func (o *OPCUA) dropClient(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.client != nil {
		_ = o.client.Close(ctx)
		o.client = nil
	}
}

func variantToFloat(v *ua.Variant) (float64, bool) {
	if v == nil {
		return 0, false
	}
	switch val := v.Value().(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

var _ ports.SensorDriver = (*OPCUA)(nil)
