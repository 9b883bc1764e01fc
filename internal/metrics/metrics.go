// Package metrics exposes Prometheus counters for the daily pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run results recorded under runs_total.
const (
	ResultPosted    = "posted"
	ResultSkipped   = "skipped"
	ResultExhausted = "exhausted"
	ResultError     = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	Runs         *prometheus.CounterVec
	TierAttempts *prometheus.CounterVec
	TierWins     *prometheus.CounterVec
	Deliveries   *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "otdbot",
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"result"}),
		TierAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "otdbot",
			Name:      "tier_attempts_total",
			Help:      "Selection attempts per tier.",
		}, []string{"tier"}),
		TierWins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "otdbot",
			Name:      "tier_wins_total",
			Help:      "Accepted selections per tier.",
		}, []string{"tier"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "otdbot",
			Name:      "deliveries_total",
			Help:      "Notification deliveries per sink.",
		}, []string{"sink", "result"}),
	}
	reg.MustRegister(m.Runs, m.TierAttempts, m.TierWins, m.Deliveries)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
