package metrics

import "github.com/prometheus/client_golang/prometheus"

// RelayMetrics exposes counters/histograms for the webhook relay and the
// fulfillment pipeline. All methods are safe on a nil receiver.
type RelayMetrics struct {
	inboundTotal     *prometheus.CounterVec
	dispatchTotal    *prometheus.CounterVec
	pipelineTotal    *prometheus.CounterVec
	outboundTotal    *prometheus.CounterVec
	artifactsTotal   *prometheus.CounterVec
	webhookLatency   prometheus.Histogram
	generatorLatency *prometheus.HistogramVec
	tasksInFlight    prometheus.Gauge
}

func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	m := &RelayMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "goodchoice",
			Subsystem: "webhook",
			Name:      "inbound_total",
			Help:      "Inbound WhatsApp webhook deliveries by outcome",
		}, []string{"outcome"}),
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "goodchoice",
			Subsystem: "relay",
			Name:      "dispatch_total",
			Help:      "Conversation events dispatched by type",
		}, []string{"event"}),
		pipelineTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "goodchoice",
			Subsystem: "relay",
			Name:      "pipeline_total",
			Help:      "Fulfillment pipeline runs by outcome",
		}, []string{"outcome"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "goodchoice",
			Subsystem: "whatsapp",
			Name:      "outbound_total",
			Help:      "Outbound Graph API calls by kind and status",
		}, []string{"kind", "status"}),
		artifactsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "goodchoice",
			Subsystem: "artifacts",
			Name:      "created_total",
			Help:      "Artifacts created by source",
		}, []string{"source"}),
		webhookLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "goodchoice",
			Subsystem: "webhook",
			Name:      "ack_latency_seconds",
			Help:      "Time from webhook receipt to acknowledgment",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		generatorLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "goodchoice",
			Subsystem: "generator",
			Name:      "latency_seconds",
			Help:      "Content generator call latency",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 90, 120},
		}, []string{"provider", "status"}),
		tasksInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "goodchoice",
			Subsystem: "relay",
			Name:      "tasks_in_flight",
			Help:      "Asynchronous fulfillment tasks currently running",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.inboundTotal,
		m.dispatchTotal,
		m.pipelineTotal,
		m.outboundTotal,
		m.artifactsTotal,
		m.webhookLatency,
		m.generatorLatency,
		m.tasksInFlight,
	)
	return m
}

func (m *RelayMetrics) ObserveInbound(outcome string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(outcome).Inc()
}

func (m *RelayMetrics) ObserveDispatch(event string) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(event).Inc()
}

func (m *RelayMetrics) ObservePipeline(outcome string) {
	if m == nil {
		return
	}
	m.pipelineTotal.WithLabelValues(outcome).Inc()
}

func (m *RelayMetrics) ObserveOutbound(kind string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.outboundTotal.WithLabelValues(kind, status).Inc()
}

func (m *RelayMetrics) ObserveArtifact(source string) {
	if m == nil {
		return
	}
	m.artifactsTotal.WithLabelValues(source).Inc()
}

func (m *RelayMetrics) ObserveWebhookLatency(seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.Observe(seconds)
}

func (m *RelayMetrics) ObserveGenerator(provider string, seconds float64, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.generatorLatency.WithLabelValues(provider, status).Observe(seconds)
}

// TaskStarted and TaskFinished track in-flight async tasks.
func (m *RelayMetrics) TaskStarted() {
	if m == nil {
		return
	}
	m.tasksInFlight.Inc()
}

func (m *RelayMetrics) TaskFinished() {
	if m == nil {
		return
	}
	m.tasksInFlight.Dec()
}
