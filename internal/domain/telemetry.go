package domain

import "time"

// TelemetrySample is a periodic snapshot of device and pipeline health,
// produced independently of frame flow.
type TelemetrySample struct {
	Timestamp     time.Time
	CPUPct        float64
	MemPct        float64
	TempC         float64
	FPS           float64
	DroppedFrames uint64
	QueueDepths   map[string]int
}

func (TelemetrySample) isResult() {}

// SensorKind names an auxiliary sensor channel.
type SensorKind string

const (
	SensorTemperature SensorKind = "temperature"
	SensorHumidity    SensorKind = "humidity"
	SensorMotion      SensorKind = "motion"
)

// SensorReading is one poll of an auxiliary sensor. OK is false when the read
// failed; the reading is still published so consumers see the gap.
type SensorReading struct {
	Kind      SensorKind
	Value     float64
	Timestamp time.Time
	OK        bool
}

func (SensorReading) isResult() {}

// ConnectionStatus is the retained liveness value on the status topic.
// Offline doubles as the broker-side last-will payload.
type ConnectionStatus string

const (
	StatusOnline  ConnectionStatus = "ONLINE"
	StatusOffline ConnectionStatus = "OFFLINE"
)

func (ConnectionStatus) isResult() {}
