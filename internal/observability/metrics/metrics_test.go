package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestChatMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewChatMetrics(reg)

	m.ObserveTurn("user")
	m.ObserveTurn("user")
	m.ObserveTurn("bot")
	m.ObserveUpstreamFailure()
	m.ObserveUpstreamLatency(0.25)
	m.ObserveFormOpen()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.turnsTotal.WithLabelValues("user")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.turnsTotal.WithLabelValues("bot")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.upstreamFailures))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.formOpens))
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *ChatMetrics
	assert.NotPanics(t, func() {
		m.ObserveTurn("user")
		m.ObserveUpstreamFailure()
		m.ObserveUpstreamLatency(1)
		m.ObserveFormOpen()
	})
}
