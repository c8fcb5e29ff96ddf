// Package metrics provides Prometheus metrics for the productive-number search.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "productive_numbers"

// Metrics holds all Prometheus metrics for a search run.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Scan metrics
	CandidatesScanned prometheus.Counter
	Hits              prometheus.Counter
	Position          prometheus.Gauge
	Limit             prometheus.Gauge

	// Timing metrics
	ChunkDuration prometheus.Histogram

	// Checkpoint metrics
	CheckpointSaves    prometheus.Counter
	CheckpointFailures *prometheus.CounterVec

	// Throughput
	CandidatesPerSecond prometheus.Gauge
}

// New registers the search metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		CandidatesScanned: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "candidates_scanned_total",
				Help:      "Total number of candidates evaluated",
			},
		),
		Hits: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "hits_total",
				Help:      "Total number of productive numbers found",
			},
		),
		Position: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "position",
				Help:      "Next candidate to be scanned",
			},
		),
		Limit: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "limit",
				Help:      "Exclusive upper bound of the search",
			},
		),
		ChunkDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "chunk_duration_seconds",
				Help:      "Time to evaluate and commit one chunk",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~30s
			},
		),
		CheckpointSaves: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "checkpoint_saves_total",
				Help:      "Total number of successful checkpoint writes",
			},
		),
		CheckpointFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "checkpoint_failures_total",
				Help:      "Total number of failed checkpoint writes",
			},
			[]string{"phase"},
		),
		CandidatesPerSecond: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "candidates_per_second",
				Help:      "Scan rate of the most recent chunk",
			},
		),
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

// StartServer serves Handler(g) on address until ctx is canceled.
func StartServer(ctx context.Context, address string, g prometheus.Gatherer) error {
	srv := &http.Server{
		Addr:              address,
		Handler:           Handler(g),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ObserveChunk records one committed chunk.
func (m *Metrics) ObserveChunk(scanned, hits uint64, next uint64, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.CandidatesScanned.Add(float64(scanned))
	m.Hits.Add(float64(hits))
	m.Position.Set(float64(next))
	m.ChunkDuration.Observe(elapsed.Seconds())
	if secs := elapsed.Seconds(); secs > 0 {
		m.CandidatesPerSecond.Set(float64(scanned) / secs)
	}
}

// SetRange records the active search bounds.
func (m *Metrics) SetRange(position, limit uint64) {
	if m == nil {
		return
	}
	m.Position.Set(float64(position))
	m.Limit.Set(float64(limit))
}

// IncCheckpointSaves increments the checkpoint save counter.
func (m *Metrics) IncCheckpointSaves() {
	if m == nil {
		return
	}
	m.CheckpointSaves.Inc()
}

// IncCheckpointFailures increments the failure counter for phase
// ("periodic" or "final").
func (m *Metrics) IncCheckpointFailures(phase string) {
	if m == nil {
		return
	}
	m.CheckpointFailures.WithLabelValues(phase).Inc()
}
