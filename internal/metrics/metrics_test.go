package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveChunk(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SetRange(1, 1000)
	m.ObserveChunk(500, 3, 501, 250*time.Millisecond)
	m.ObserveChunk(499, 1, 1000, 250*time.Millisecond)

	if got := testutil.ToFloat64(m.CandidatesScanned); got != 999 {
		t.Errorf("candidates scanned = %v, want 999", got)
	}
	if got := testutil.ToFloat64(m.Hits); got != 4 {
		t.Errorf("hits = %v, want 4", got)
	}
	if got := testutil.ToFloat64(m.Position); got != 1000 {
		t.Errorf("position = %v, want 1000", got)
	}
	if got := testutil.ToFloat64(m.Limit); got != 1000 {
		t.Errorf("limit = %v, want 1000", got)
	}
	if got := testutil.ToFloat64(m.CandidatesPerSecond); got != 1996 {
		t.Errorf("rate = %v, want 1996", got)
	}
}

func TestCheckpointCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncCheckpointSaves()
	m.IncCheckpointSaves()
	m.IncCheckpointFailures("periodic")

	if got := testutil.ToFloat64(m.CheckpointSaves); got != 2 {
		t.Errorf("saves = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.CheckpointFailures.WithLabelValues("periodic")); got != 1 {
		t.Errorf("periodic failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CheckpointFailures.WithLabelValues("final")); got != 0 {
		t.Errorf("final failures = %v, want 0", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.SetRange(1, 2)
	m.ObserveChunk(1, 1, 2, time.Second)
	m.IncCheckpointSaves()
	m.IncCheckpointFailures("final")
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveChunk(10, 2, 11, time.Millisecond)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/health status = %d", resp.StatusCode)
	}

	n, err := testutil.GatherAndCount(reg, Namespace+"_hits_total")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("hits series = %d, want 1", n)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "productive_numbers_hits_total 2") {
		t.Errorf("/metrics missing hits_total:\n%s", buf.String())
	}
}
