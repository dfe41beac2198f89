package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	suggestions *prometheus.CounterVec
	outcomes    *prometheus.CounterVec
	autoghosts  prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		suggestions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wingmate_suggestions_total",
			Help: "Suggestion batches generated, by mode.",
		}, []string{"mode"}),
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wingmate_outcomes_total",
			Help: "Thread outcomes recorded, by outcome.",
		}, []string{"outcome"}),
		autoghosts: factory.NewCounter(prometheus.CounterOpts{
			Name: "wingmate_autoghost_closed_total",
			Help: "Threads closed by the autoghost sweep.",
		}),
	}
}
