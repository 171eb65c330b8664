package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPromObsMetrics(t *testing.T) {
	obs := NewWithRegistry(nil, prometheus.NewRegistry())

	obs.IncCounter("edge_frames_captured_total", 5)
	if got := testutil.ToFloat64(obs.counters["edge_frames_captured_total"]); got != 5 {
		t.Fatalf("expected captured counter 5, got %f", got)
	}

	obs.IncCounter("edge_bus_messages_dropped_total", 2)
	if got := testutil.ToFloat64(obs.counters["edge_bus_messages_dropped_total"]); got != 2 {
		t.Fatalf("expected drop counter 2, got %f", got)
	}

	obs.SetGauge("edge_pipeline_fps", 14.5)
	if got := testutil.ToFloat64(obs.gauges["edge_pipeline_fps"]); got != 14.5 {
		t.Fatalf("expected fps gauge 14.5, got %f", got)
	}

	obs.ObserveLatency("edge_inference_latency_seconds", 0.08)
	hCollector := obs.histos["edge_inference_latency_seconds"].(prometheus.Collector)
	if samples := testutil.CollectAndCount(hCollector); samples != 1 {
		t.Fatalf("expected latency histogram to record 1 sample, got %d", samples)
	}
}

func TestPromObsIgnoresUnknownNames(t *testing.T) {
	obs := NewWithRegistry(nil, prometheus.NewRegistry())

	// Must not panic on metric names that were never registered.
	obs.IncCounter("edge_unknown_total", 1)
	obs.SetGauge("edge_unknown", 1)
	obs.ObserveLatency("edge_unknown_seconds", 1)
}

func TestPromObsLogsWithoutLogger(t *testing.T) {
	obs := NewWithRegistry(nil, prometheus.NewRegistry())

	obs.LogInfo("started")
	obs.LogWarn("slow")
	obs.LogError("failed", nil)
}
