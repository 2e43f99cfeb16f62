package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/devblac/dex-catalog/internal/report"
)

func sampleReport() *report.Report {
	start := time.Date(2025, 4, 11, 12, 0, 0, 0, time.UTC)
	r := report.New(start, false)
	r.FinishedAt = start.Add(2 * time.Second)
	r.Adapters = []report.AdapterResult{
		{ID: "uniswap-official", Status: report.AdapterOK, DurationMS: 1500},
		{ID: "aggregator", Status: report.AdapterFailed, DurationMS: 60000},
	}
	r.Records = report.Records{Fetched: 10, Normalized: 8, Dropped: 2}
	r.Conflicts = []report.Conflict{{Key: "curve/1/router"}}
	r.Files = report.Files{Written: 3, Unchanged: 5}
	return r
}

func TestObserveCountsRun(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())
	m.Observe(sampleReport())
	m.Observe(sampleReport())

	if got := testutil.ToFloat64(m.runs.WithLabelValues(report.StatusDegraded)); got != 2 {
		t.Fatalf("degraded runs = %v", got)
	}
	if got := testutil.ToFloat64(m.adapterRuns.WithLabelValues("aggregator", report.AdapterFailed)); got != 2 {
		t.Fatalf("failed adapter runs = %v", got)
	}
	if got := testutil.ToFloat64(m.records.WithLabelValues("dropped")); got != 2 {
		t.Fatalf("dropped gauge = %v", got)
	}
	if got := testutil.ToFloat64(m.conflicts); got != 1 {
		t.Fatalf("conflicts = %v", got)
	}
	if got := testutil.ToFloat64(m.files.WithLabelValues("written")); got != 6 {
		t.Fatalf("written files = %v", got)
	}
	if got := testutil.ToFloat64(m.lastRun); got != float64(sampleReport().FinishedAt.Unix()) {
		t.Fatalf("last run = %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Observe(sampleReport())
	if err := m.Push(context.Background(), "http://127.0.0.1:1", ""); err != nil {
		t.Fatalf("nil push: %v", err)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())
	m.Observe(sampleReport())

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "dex_catalog_conflicts 1") {
		t.Fatalf("metrics body missing conflicts gauge:\n%s", body)
	}
}

func TestPushSendsToGateway(t *testing.T) {
	var path string
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer gw.Close()

	m := NewWithRegistry(prometheus.NewRegistry())
	m.Observe(sampleReport())
	if err := m.Push(context.Background(), gw.URL, ""); err != nil {
		t.Fatalf("push: %v", err)
	}
	if path != "/metrics/job/dex_catalog" {
		t.Fatalf("push path = %s", path)
	}
}
