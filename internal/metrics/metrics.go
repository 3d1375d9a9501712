// Package metrics holds the Prometheus collectors of the trader on a private
// registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	LedgerAppends   *prometheus.CounterVec
	LedgerMalformed *prometheus.CounterVec
	LedgerErrors    *prometheus.CounterVec
	Cycles          *prometheus.CounterVec
	Skips           *prometheus.CounterVec
	CycleDuration   *prometheus.HistogramVec
	Orders          *prometheus.CounterVec
	Equity          *prometheus.GaugeVec
}

func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		LedgerAppends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trader_ledger_appends_total",
				Help: "Ledger records written by identity and action",
			},
			[]string{"identity", "action"},
		),
		LedgerMalformed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trader_ledger_malformed_lines_total",
				Help: "Ledger lines skipped because they could not be used",
			},
			[]string{"identity"},
		),
		LedgerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trader_ledger_storage_errors_total",
				Help: "Ledger I/O failures by operation",
			},
			[]string{"identity", "op"},
		),
		Cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trader_cycles_total",
				Help: "Decision cycles by identity and outcome",
			},
			[]string{"identity", "outcome"},
		),
		Skips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trader_cycle_skips_total",
				Help: "Skipped cycles by reason",
			},
			[]string{"identity", "reason"},
		),
		CycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trader_cycle_duration_seconds",
				Help:    "Wall time of one decision cycle",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"identity"},
		),
		Orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trader_orders_total",
				Help: "Orders submitted by broker status",
			},
			[]string{"identity", "side", "status"},
		),
		Equity: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trader_equity",
				Help: "Cash plus priced holdings after the last cycle",
			},
			[]string{"identity"},
		),
	}

	r.reg.MustRegister(
		r.LedgerAppends,
		r.LedgerMalformed,
		r.LedgerErrors,
		r.Cycles,
		r.Skips,
		r.CycleDuration,
		r.Orders,
		r.Equity,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// MalformedHook adapts the registry to the ledger's malformed-line callback.
func (r *Registry) MalformedHook() func(identity, path string, line int, err error) {
	return func(identity, _ string, _ int, _ error) {
		r.LedgerMalformed.WithLabelValues(identity).Inc()
	}
}
