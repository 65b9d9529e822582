package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var out dto.Metric
	if err := c.Write(&out); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	return out.GetCounter().GetValue()
}

func TestRecordQuery(t *testing.T) {
	m := New()
	m.RecordQuery(3, time.Millisecond, nil)
	m.RecordQuery(0, time.Millisecond, errors.New("boom"))

	if got := counterValue(t, m.QueriesTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("expected 1 ok query, got %v", got)
	}
	if got := counterValue(t, m.QueriesTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("expected 1 failed query, got %v", got)
	}
}

func TestRecordConnect(t *testing.T) {
	m := New()
	m.RecordConnect(nil)
	m.RecordConnect(nil)
	m.RecordConnect(errors.New("unreachable"))

	if got := counterValue(t, m.ConnectionsBuilt); got != 2 {
		t.Errorf("expected 2 connections, got %v", got)
	}
	if got := counterValue(t, m.ConnectFailures); got != 1 {
		t.Errorf("expected 1 failure, got %v", got)
	}
}

func TestRegistryIsPrivate(t *testing.T) {
	a, b := New(), New()
	a.RecordStorageOperation("put", nil)

	families, err := b.Registry.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, f := range families {
		if f.GetName() == "taskman_storage_operations_total" && len(f.GetMetric()) != 0 {
			t.Errorf("metrics leaked between registries")
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordQuery(1, time.Second, nil)
	m.RecordConnect(nil)
	m.RecordStorageOperation("get", nil)
}
