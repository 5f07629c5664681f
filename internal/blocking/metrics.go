package blocking

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var decisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "blocking_decisions_total",
		Help: "Total number of blocking decisions by outcome and severity",
	},
	[]string{"outcome", "severity"},
)

func recordDecision(outcome string, severity Severity) {
	decisionsTotal.WithLabelValues(outcome, string(severity)).Inc()
}
