package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rtorresf4/vision-iot-pi5/internal/domain"
)

// ErrUnroutable marks a result type the router does not know. Hitting it is
// a programming error, not a runtime condition to recover from.
var ErrUnroutable = errors.New("router: unroutable result")

// Router maps each internal result type to its topic and wire format. It
// performs no I/O.
type Router struct {
	base string
	qos  byte
}

func New(baseTopic string, qos byte) *Router {
	return &Router{base: strings.TrimRight(baseTopic, "/"), qos: qos}
}

type detectionsPayload struct {
	Sequence   uint64             `json:"sequence"`
	Timestamp  float64            `json:"timestamp"`
	LatencyMS  float64            `json:"latency_ms"`
	Late       bool               `json:"late"`
	Detections []domain.Detection `json:"detections"`
}

type telemetryPayload struct {
	Timestamp     float64        `json:"timestamp"`
	CPUPct        float64        `json:"cpu_pct"`
	MemPct        float64        `json:"mem_pct"`
	TempC         float64        `json:"temp_c"`
	FPS           float64        `json:"fps"`
	DroppedFrames uint64         `json:"dropped_frames"`
	QueueDepths   map[string]int `json:"queue_depths"`
}

type sensorPayload struct {
	Timestamp float64 `json:"timestamp"`
	Kind      string  `json:"kind"`
	Value     float64 `json:"value"`
	ReadOK    bool    `json:"read_ok"`
}

type statusPayload struct {
	Value string `json:"value"`
}

// Route produces exactly one outbound message for the given result. Status
// messages are retained; everything else is not.
func (r *Router) Route(res domain.Result) (domain.OutboundMessage, error) {
	switch v := res.(type) {
	case domain.DetectionBatch:
		dets := v.Detections
		if dets == nil {
			dets = []domain.Detection{}
		}
		return r.message("detections", false, detectionsPayload{
			Sequence:   v.Seq,
			Timestamp:  epoch(v.Timestamp),
			LatencyMS:  float64(v.Latency.Microseconds()) / 1000.0,
			Late:       v.Late,
			Detections: dets,
		})
	case domain.TelemetrySample:
		return r.message("telemetry", false, telemetryPayload{
			Timestamp:     epoch(v.Timestamp),
			CPUPct:        v.CPUPct,
			MemPct:        v.MemPct,
			TempC:         v.TempC,
			FPS:           v.FPS,
			DroppedFrames: v.DroppedFrames,
			QueueDepths:   v.QueueDepths,
		})
	case domain.SensorReading:
		return r.message("sensors", false, sensorPayload{
			Timestamp: epoch(v.Timestamp),
			Kind:      string(v.Kind),
			Value:     v.Value,
			ReadOK:    v.OK,
		})
	case domain.ConnectionStatus:
		return r.message("status", true, statusPayload{Value: string(v)})
	default:
		return domain.OutboundMessage{}, fmt.Errorf("%w: %T", ErrUnroutable, res)
	}
}

// StatusMessage builds the retained status message for the given state.
// The publisher uses it for ONLINE/OFFLINE publishes and the last-will.
func (r *Router) StatusMessage(s domain.ConnectionStatus) domain.OutboundMessage {
	msg, _ := r.Route(s)
	return msg
}

// StatusTopic is the topic carrying the retained liveness value.
func (r *Router) StatusTopic() string {
	return r.base + "/status"
}

func (r *Router) message(suffix string, retain bool, payload any) (domain.OutboundMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return domain.OutboundMessage{}, fmt.Errorf("router: marshal %s: %w", suffix, err)
	}
	return domain.OutboundMessage{
		Topic:   r.base + "/" + suffix,
		Payload: raw,
		QoS:     r.qos,
		Retain:  retain,
		Created: time.Now(),
	}, nil
}

func epoch(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
