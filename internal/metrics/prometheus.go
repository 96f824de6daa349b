package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jarvis/internal/domain"
)

// Metrics contains the Prometheus instruments for the live session.
type Metrics struct {
	registry *prometheus.Registry

	// Session lifecycle
	SessionsOpened prometheus.Counter
	SessionsClosed *prometheus.CounterVec
	SessionOpen    prometheus.Gauge

	// Outbound audio
	FramesSent     prometheus.Counter
	FrameBytesSent prometheus.Counter

	// Inbound processing
	InboundMessages   prometheus.Counter
	SegmentsScheduled prometheus.Counter
	PlaybackLead      prometheus.Histogram
	PlaybackFlushes   prometheus.Counter
	SegmentsDropped   prometheus.Counter

	// Tool calls
	ToolCalls *prometheus.CounterVec
}

// NewMetrics creates the instruments on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		SessionsOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "jarvis_sessions_opened_total",
			Help: "Total number of live sessions that completed the handshake",
		}),
		SessionsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jarvis_sessions_closed_total",
			Help: "Total number of live sessions closed, by reason",
		}, []string{"reason"}),
		SessionOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "jarvis_session_open",
			Help: "1 while a live session is open",
		}),

		FramesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "jarvis_audio_frames_sent_total",
			Help: "Total number of microphone frames transmitted",
		}),
		FrameBytesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "jarvis_audio_frame_bytes_sent_total",
			Help: "Total PCM bytes transmitted",
		}),

		InboundMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: "jarvis_inbound_messages_total",
			Help: "Total number of messages received from the remote peer",
		}),
		SegmentsScheduled: factory.NewCounter(prometheus.CounterOpts{
			Name: "jarvis_playback_segments_scheduled_total",
			Help: "Total number of synthesized audio segments scheduled",
		}),
		PlaybackLead: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "jarvis_playback_lead_seconds",
			Help:    "How far ahead of the output clock each segment was scheduled",
			Buckets: []float64{0, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		PlaybackFlushes: factory.NewCounter(prometheus.CounterOpts{
			Name: "jarvis_playback_flushes_total",
			Help: "Total number of playback flushes",
		}),
		SegmentsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "jarvis_playback_segments_dropped_total",
			Help: "Total number of in-flight segments discarded by flushes",
		}),

		ToolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jarvis_tool_calls_total",
			Help: "Total number of tool calls handled, by tool and result",
		}, []string{"tool", "result"}),
	}
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SessionOpened() {
	m.SessionsOpened.Inc()
	m.SessionOpen.Set(1)
}

func (m *Metrics) SessionClosed(reason domain.SessionStateReason) {
	m.SessionsClosed.WithLabelValues(string(reason)).Inc()
	m.SessionOpen.Set(0)
}

func (m *Metrics) FrameSent(bytes int) {
	m.FramesSent.Inc()
	m.FrameBytesSent.Add(float64(bytes))
}

func (m *Metrics) InboundMessage() {
	m.InboundMessages.Inc()
}

func (m *Metrics) SegmentScheduled(lead time.Duration) {
	m.SegmentsScheduled.Inc()
	m.PlaybackLead.Observe(lead.Seconds())
}

func (m *Metrics) PlaybackFlushed(dropped int) {
	m.PlaybackFlushes.Inc()
	m.SegmentsDropped.Add(float64(dropped))
}

func (m *Metrics) ToolCall(name string, result domain.ToolResult) {
	m.ToolCalls.WithLabelValues(name, string(result)).Inc()
}
