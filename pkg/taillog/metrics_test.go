package taillog

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/CVDpl/go-taillog/internal/common"
)

func TestMetricsCollection(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewMetrics(registry)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	opts := DefaultOptions()
	opts.MaxKeys = 1 << 10
	opts.LogSize = 1 << 16
	opts.Logger = common.NewNullLogger()
	opts.Metrics = metrics
	store, err := New(opts)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	if _, err := store.Append([]byte("metered")); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}
	store.Search([]byte("metered"))
	if !store.Delete(0) {
		t.Fatal("Expected delete to succeed")
	}

	if got := testutil.ToFloat64(metrics.appends); got != 1 {
		t.Errorf("Expected 1 append, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.deletes); got != 1 {
		t.Errorf("Expected 1 delete, got %v", got)
	}
}

func TestMetricsDoubleRegister(t *testing.T) {
	registry := prometheus.NewRegistry()
	if _, err := NewMetrics(registry); err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}
	if _, err := NewMetrics(registry); err == nil {
		t.Error("Expected duplicate registration to fail")
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAppend(time.Millisecond)
	m.ObserveUpdate(time.Millisecond)
	m.ObserveSearch(time.Millisecond)
	m.IncDelete()
	m.IncCapacityFailure()
}
