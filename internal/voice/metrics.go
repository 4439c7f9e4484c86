package voice

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TechnicallyShaun/nota-scribe/internal/voice/summarize"
)

// Outcome labels for the recordings counter.
const (
	OutcomeDone     = "done"
	OutcomeFallback = "fallback"
	OutcomeFailed   = "failed"
	OutcomeSkipped  = "skipped"
)

// Metrics holds the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry   *prometheus.Registry
	recordings *prometheus.CounterVec
	stages     *prometheus.HistogramVec
	stageErrs  *prometheus.CounterVec
	transcribe prometheus.Histogram
	inFlight   prometheus.Gauge
}

var _ summarize.Observer = (*Metrics)(nil)

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		recordings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nota",
			Subsystem: "voice",
			Name:      "recordings_total",
			Help:      "Recordings handled, by note type and outcome.",
		}, []string{"type", "outcome"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nota",
			Subsystem: "voice",
			Name:      "stage_duration_seconds",
			Help:      "Language-model call latency per summarization stage.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"type", "stage"}),
		stageErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nota",
			Subsystem: "voice",
			Name:      "stage_errors_total",
			Help:      "Failed summarization stage calls.",
		}, []string{"type", "stage"}),
		transcribe: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nota",
			Subsystem: "voice",
			Name:      "transcription_duration_seconds",
			Help:      "Speech-to-text latency including retries.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nota",
			Subsystem: "voice",
			Name:      "recordings_in_flight",
			Help:      "Recordings currently being processed.",
		}),
	}
	m.registry.MustRegister(m.recordings, m.stages, m.stageErrs, m.transcribe, m.inFlight)
	return m
}

// Registry exposes the registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveStage records one model call.
func (m *Metrics) ObserveStage(noteType, stage string, elapsed time.Duration, err error) {
	m.stages.WithLabelValues(noteType, stage).Observe(elapsed.Seconds())
	if err != nil {
		m.stageErrs.WithLabelValues(noteType, stage).Inc()
	}
}

// ObserveTranscription records one speech-to-text request.
func (m *Metrics) ObserveTranscription(elapsed time.Duration) {
	m.transcribe.Observe(elapsed.Seconds())
}

// Recording counts a finished recording.
func (m *Metrics) Recording(noteType, outcome string) {
	m.recordings.WithLabelValues(noteType, outcome).Inc()
}

// Begin marks a recording as in flight and returns the matching end call.
func (m *Metrics) Begin() func() {
	m.inFlight.Inc()
	return m.inFlight.Dec
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
