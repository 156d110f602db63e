package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service, plus the
// in-process stage window backing /api/perf.
type Metrics struct {
	ActiveConnections prometheus.Gauge
	Listening         prometheus.Gauge
	Turns             *prometheus.CounterVec
	Phrases           prometheus.Counter
	AudioChunks       *prometheus.CounterVec
	AudioBytes        *prometheus.CounterVec
	StopSignals       *prometheus.CounterVec
	STTEvents         *prometheus.CounterVec
	Wakewords         *prometheus.CounterVec
	ProviderErrors    *prometheus.CounterVec
	FirstAudioLatency prometheus.Histogram

	stages *stageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Number of open chat websocket connections.",
		}),
		Listening: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "listening",
			Help:      "1 while speech capture is running, 0 while paused.",
		}),
		Turns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Completed chat turns by outcome.",
		}, []string{"outcome"}),
		Phrases: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phrases_total",
			Help:      "Phrases emitted by the segmentation stage.",
		}),
		AudioChunks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_total",
			Help:      "PCM chunks produced by synthesis, by provider.",
		}, []string{"provider"}),
		AudioBytes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_total",
			Help:      "PCM bytes produced by synthesis, by provider.",
		}, []string{"provider"}),
		StopSignals: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stop_signals_total",
			Help:      "Stop signals raised, by signal.",
		}, []string{"signal"}),
		STTEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_events_total",
			Help:      "Speech-to-text events by type.",
		}, []string{"event"}),
		Wakewords: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wakeword_detections_total",
			Help:      "Wake word detections by keyword.",
		}, []string{"keyword"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider errors by provider and code.",
		}, []string{"provider", "code"}),
		FirstAudioLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "first_audio_latency_ms",
			Help:      "Latency to first synthesized audio chunk in milliseconds.",
			Buckets:   []float64{100, 200, 300, 500, 700, 900, 1200, 2000},
		}),
		stages: newStageWindow(256),
	}
}

func (m *Metrics) ObserveFirstAudioLatency(d time.Duration) {
	m.FirstAudioLatency.Observe(float64(d.Milliseconds()))
}

// ObserveTurnStage records one stage duration into the rolling window.
func (m *Metrics) ObserveTurnStage(stage string, d time.Duration) {
	m.stages.Observe(stage, float64(d.Milliseconds()))
}

// ObserveTurnIndicator counts a notable per-turn event (stops, drains,
// provider failures) for the perf snapshot.
func (m *Metrics) ObserveTurnIndicator(name string) {
	m.stages.ObserveIndicator(name)
}

// SnapshotTurnStages returns the current rolling-window latency summary.
func (m *Metrics) SnapshotTurnStages() StageSnapshot {
	return m.stages.Snapshot()
}

// ResetTurnStages discards the rolling window, for load-test warmup.
func (m *Metrics) ResetTurnStages() {
	m.stages.Reset()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
