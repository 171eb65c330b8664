package domain

import (
	"strings"
	"time"
)

// Label classifies a detected part.
type Label string

const (
	LabelOK        Label = "OK"
	LabelDefective Label = "DEFECTIVE"
)

// LabelForClass maps a model class name onto a Label. Unknown classes keep
// their name so new defect classes flow through without a code change.
func LabelForClass(name string) Label {
	switch strings.ToLower(name) {
	case "ok", "good":
		return LabelOK
	case "defect", "defective", "ng":
		return LabelDefective
	default:
		return Label(strings.ToUpper(name))
	}
}

// BBox is a bounding box in pixel units of the source frame.
type BBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Detection is one object found in a frame. Immutable once created.
type Detection struct {
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        BBox    `json:"bbox"`
}

// DetectionBatch holds every detection produced from a single frame. At most
// one batch exists per frame sequence number.
type DetectionBatch struct {
	Seq        uint64
	Timestamp  time.Time
	Latency    time.Duration
	Late       bool
	Detections []Detection
}

func (DetectionBatch) isResult() {}
