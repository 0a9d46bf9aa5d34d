package bridge

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks bridge activity. Counts are kept twice: as atomics for
// the JSON stats endpoint and as Prometheus collectors for scraping.
type Metrics struct {
	framesForwarded atomic.Int64
	chunksDropped   atomic.Int64
	turnsTriggered  atomic.Int64
	itemsRendered   atomic.Int64
	itemsSilent     atomic.Int64
	reconnects      atomic.Int64
	sessionErrors   atomic.Int64
	renderErrors    atomic.Int64

	promFramesForwarded prometheus.Counter
	promChunksDropped   prometheus.Counter
	promTurnsTriggered  prometheus.Counter
	promItemsRendered   prometheus.Counter
	promItemsSilent     prometheus.Counter
	promReconnects      prometheus.Counter
	promSessionErrors   prometheus.Counter
	promRenderErrors    prometheus.Counter
	promState           prometheus.Gauge
}

// NewMetrics creates bridge metrics registered with reg. Pass a fresh
// registry in tests to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		promFramesForwarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_frames_forwarded_total",
			Help: "Total number of audio frames forwarded to the session",
		}),
		promChunksDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_chunks_dropped_total",
			Help: "Total number of capture chunks dropped while disconnected",
		}),
		promTurnsTriggered: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_turns_triggered_total",
			Help: "Total number of user turns closed by silence detection",
		}),
		promItemsRendered: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_items_rendered_total",
			Help: "Total number of response items played back",
		}),
		promItemsSilent: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_items_without_audio_total",
			Help: "Total number of completed response items carrying no audio",
		}),
		promReconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_session_reconnects_total",
			Help: "Total number of successful session reconnections",
		}),
		promSessionErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_session_errors_total",
			Help: "Total number of session transport errors",
		}),
		promRenderErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_render_errors_total",
			Help: "Total number of playback failures",
		}),
		promState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voicebridge_state",
			Help: "Current bridge state (0=disconnected 1=connecting 2=streaming 3=awaiting_response)",
		}),
	}
}

func (m *Metrics) incFramesForwarded() {
	m.framesForwarded.Add(1)
	m.promFramesForwarded.Inc()
}

func (m *Metrics) incChunksDropped() {
	m.chunksDropped.Add(1)
	m.promChunksDropped.Inc()
}

func (m *Metrics) incTurnsTriggered() {
	m.turnsTriggered.Add(1)
	m.promTurnsTriggered.Inc()
}

func (m *Metrics) incItemsRendered() {
	m.itemsRendered.Add(1)
	m.promItemsRendered.Inc()
}

func (m *Metrics) incItemsSilent() {
	m.itemsSilent.Add(1)
	m.promItemsSilent.Inc()
}

func (m *Metrics) incReconnects() {
	m.reconnects.Add(1)
	m.promReconnects.Inc()
}

func (m *Metrics) incSessionErrors() {
	m.sessionErrors.Add(1)
	m.promSessionErrors.Inc()
}

func (m *Metrics) incRenderErrors() {
	m.renderErrors.Add(1)
	m.promRenderErrors.Inc()
}

func (m *Metrics) setState(s State) {
	m.promState.Set(float64(s))
}

// Snapshot is a point-in-time view of bridge statistics.
type Snapshot struct {
	FramesForwarded int64 `json:"frames_forwarded"`
	ChunksDropped   int64 `json:"chunks_dropped"`
	TurnsTriggered  int64 `json:"turns_triggered"`
	ItemsRendered   int64 `json:"items_rendered"`
	ItemsSilent     int64 `json:"items_without_audio"`
	Reconnects      int64 `json:"reconnects"`
	SessionErrors   int64 `json:"session_errors"`
	RenderErrors    int64 `json:"render_errors"`
}

// Snapshot returns current counter values.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		FramesForwarded: m.framesForwarded.Load(),
		ChunksDropped:   m.chunksDropped.Load(),
		TurnsTriggered:  m.turnsTriggered.Load(),
		ItemsRendered:   m.itemsRendered.Load(),
		ItemsSilent:     m.itemsSilent.Load(),
		Reconnects:      m.reconnects.Load(),
		SessionErrors:   m.sessionErrors.Load(),
		RenderErrors:    m.renderErrors.Load(),
	}
}
