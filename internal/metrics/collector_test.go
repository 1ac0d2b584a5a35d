package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newEnabledCollector(t *testing.T) *Collector {
	t.Helper()
	c, err := NewCollector(&Config{
		Enabled:   true,
		Address:   "localhost:0",
		Namespace: "shrinkfs",
	})
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}
	return c
}

func TestNewCollector(t *testing.T) {
	t.Parallel()

	t.Run("with valid config", func(t *testing.T) {
		c := newEnabledCollector(t)
		if !c.Enabled() {
			t.Error("Expected collector to be enabled")
		}
		if c.registry == nil {
			t.Error("collector.registry is nil")
		}
		if c.Handler() == nil {
			t.Error("Expected scrape handler for enabled collector")
		}
	})

	t.Run("with nil config is disabled", func(t *testing.T) {
		c, err := NewCollector(nil)
		if err != nil {
			t.Fatalf("NewCollector(nil) error = %v", err)
		}
		if c.Enabled() {
			t.Error("Expected nil config to disable the collector")
		}
		if c.Handler() != nil {
			t.Error("Expected nil handler for disabled collector")
		}
	})

	t.Run("path and namespace defaults", func(t *testing.T) {
		c, err := NewCollector(&Config{Enabled: true})
		if err != nil {
			t.Fatalf("NewCollector() error = %v", err)
		}
		if c.config.Path != "/metrics" {
			t.Errorf("Expected default path /metrics, got %s", c.config.Path)
		}
		if c.config.Namespace != "shrinkfs" {
			t.Errorf("Expected default namespace shrinkfs, got %s", c.config.Namespace)
		}
	})
}

func TestNilCollectorIsSafe(t *testing.T) {
	t.Parallel()

	var c *Collector

	// None of these may panic.
	c.RecordCompression("gzip", true, time.Millisecond, 100, 40)
	c.RecordDecompression("gzip", false, time.Millisecond)
	c.RecordScan()
	c.RecordMonitorCycle()
	c.RecordThresholdTrigger()
	c.RecordReconcile(3)
	c.RecordBatch(10)
	c.SetDiskUsedPercent(91.5)
	c.SetLedgerEntries(4)
	c.SetSpaceSavedBytes(1024)
	c.SetMonitorRunning(true)

	if c.Enabled() {
		t.Error("nil collector must report disabled")
	}
	if err := c.Stop(context.Background()); err != nil {
		t.Errorf("Stop() on nil collector error = %v", err)
	}
}

func TestRecordCompression(t *testing.T) {
	t.Parallel()
	c := newEnabledCollector(t)

	c.RecordCompression("gzip", true, 10*time.Millisecond, 1000, 400)
	c.RecordCompression("gzip", true, 10*time.Millisecond, 500, 100)
	c.RecordCompression("gzip", false, time.Millisecond, 0, 0)
	c.RecordCompression("deflate", true, time.Millisecond, 200, 100)

	success := c.compressionCounter.WithLabelValues("gzip", "success")
	if got := testutil.ToFloat64(success); got != 2 {
		t.Errorf("gzip success count = %f, want 2", got)
	}
	failure := c.compressionCounter.WithLabelValues("gzip", "error")
	if got := testutil.ToFloat64(failure); got != 1 {
		t.Errorf("gzip error count = %f, want 1", got)
	}

	// Byte counters only accumulate successes.
	if got := testutil.ToFloat64(c.originalBytes.WithLabelValues("gzip")); got != 1500 {
		t.Errorf("gzip original bytes = %f, want 1500", got)
	}
	if got := testutil.ToFloat64(c.compressedBytes.WithLabelValues("gzip")); got != 500 {
		t.Errorf("gzip compressed bytes = %f, want 500", got)
	}
	if got := testutil.ToFloat64(c.originalBytes.WithLabelValues("deflate")); got != 200 {
		t.Errorf("deflate original bytes = %f, want 200", got)
	}
}

func TestRecordDecompression(t *testing.T) {
	t.Parallel()
	c := newEnabledCollector(t)

	c.RecordDecompression("gzip", true, time.Millisecond)
	c.RecordDecompression("gzip", false, time.Millisecond)

	if got := testutil.ToFloat64(c.decompressionCounter.WithLabelValues("gzip", "success")); got != 1 {
		t.Errorf("success count = %f, want 1", got)
	}
	if got := testutil.ToFloat64(c.decompressionCounter.WithLabelValues("gzip", "error")); got != 1 {
		t.Errorf("error count = %f, want 1", got)
	}
}

func TestCountersAndGauges(t *testing.T) {
	t.Parallel()
	c := newEnabledCollector(t)

	c.RecordScan()
	c.RecordScan()
	c.RecordMonitorCycle()
	c.RecordThresholdTrigger()
	c.RecordReconcile(3)
	c.SetDiskUsedPercent(91.5)
	c.SetLedgerEntries(7)
	c.SetSpaceSavedBytes(2048)
	c.SetMonitorRunning(true)

	if got := testutil.ToFloat64(c.scanCounter); got != 2 {
		t.Errorf("scans = %f, want 2", got)
	}
	if got := testutil.ToFloat64(c.cycleCounter); got != 1 {
		t.Errorf("cycles = %f, want 1", got)
	}
	if got := testutil.ToFloat64(c.triggerCounter); got != 1 {
		t.Errorf("triggers = %f, want 1", got)
	}
	if got := testutil.ToFloat64(c.reconcileCounter); got != 3 {
		t.Errorf("reconcile removed = %f, want 3", got)
	}
	if got := testutil.ToFloat64(c.diskUsedPercent); got != 91.5 {
		t.Errorf("disk used = %f, want 91.5", got)
	}
	if got := testutil.ToFloat64(c.ledgerEntries); got != 7 {
		t.Errorf("ledger entries = %f, want 7", got)
	}
	if got := testutil.ToFloat64(c.spaceSavedBytes); got != 2048 {
		t.Errorf("space saved = %f, want 2048", got)
	}
	if got := testutil.ToFloat64(c.monitorRunning); got != 1 {
		t.Errorf("monitor running = %f, want 1", got)
	}

	c.SetMonitorRunning(false)
	if got := testutil.ToFloat64(c.monitorRunning); got != 0 {
		t.Errorf("monitor running after stop = %f, want 0", got)
	}
}

func TestScrapeHandler(t *testing.T) {
	t.Parallel()
	c := newEnabledCollector(t)

	c.RecordCompression("gzip", true, time.Millisecond, 100, 40)
	c.SetLedgerEntries(1)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"shrinkfs_compressions_total",
		"shrinkfs_ledger_entries",
		"shrinkfs_compression_duration_seconds",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape output missing %s", want)
		}
	}
}

func TestStopWithoutStart(t *testing.T) {
	t.Parallel()
	c := newEnabledCollector(t)

	if err := c.Stop(context.Background()); err != nil {
		t.Errorf("Stop() without Start() error = %v", err)
	}
}
