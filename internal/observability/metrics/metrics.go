package metrics

import "github.com/prometheus/client_golang/prometheus"

// ChatMetrics exposes counters/histograms for the chat relay.
type ChatMetrics struct {
	turnsTotal       *prometheus.CounterVec
	upstreamFailures prometheus.Counter
	upstreamLatency  prometheus.Histogram
	formOpens        prometheus.Counter
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finetech",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Total chat messages appended to conversations",
		}, []string{"sender"}),
		upstreamFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "finetech",
			Subsystem: "chat",
			Name:      "upstream_failures_total",
			Help:      "Total failed relays to the automation webhook",
		}),
		upstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "finetech",
			Subsystem: "chat",
			Name:      "upstream_latency_seconds",
			Help:      "Latency of automation webhook calls",
			Buckets:   prometheus.DefBuckets,
		}),
		formOpens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "finetech",
			Subsystem: "chat",
			Name:      "form_opens_total",
			Help:      "Times the scheduling form was opened",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.upstreamFailures, m.upstreamLatency, m.formOpens)
	return m
}

func (m *ChatMetrics) ObserveTurn(sender string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(sender).Inc()
}

func (m *ChatMetrics) ObserveUpstreamFailure() {
	if m == nil {
		return
	}
	m.upstreamFailures.Inc()
}

func (m *ChatMetrics) ObserveUpstreamLatency(seconds float64) {
	if m == nil {
		return
	}
	m.upstreamLatency.Observe(seconds)
}

func (m *ChatMetrics) ObserveFormOpen() {
	if m == nil {
		return
	}
	m.formOpens.Inc()
}
