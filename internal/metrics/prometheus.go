package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "dca_vault"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type promGauge struct {
	gauge prometheus.Gauge
}

func (p promGauge) Set(v float64) {
	p.gauge.Set(v)
}

type Prometheus struct {
	Metrics *Metrics

	registry        *prometheus.Registry
	counters        map[string]prometheus.Counter
	tradesRemaining prometheus.Gauge
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	p := &Prometheus{registry: registry, counters: make(map[string]prometheus.Counter)}
	counter := func(name, help string) Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      name,
			Help:      help,
		})
		registry.MustRegister(c)
		p.counters[name] = c
		return promCounter{c}
	}
	p.tradesRemaining = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Name:      "trades_remaining",
		Help:      "Trades left in the schedule.",
	})
	registry.MustRegister(p.tradesRemaining)

	p.Metrics = &Metrics{
		CyclesStarted:   counter("cycles_started_total", "Total number of dispatched swap cycles."),
		CyclesFinalized: counter("cycles_finalized_total", "Total number of finalized swap cycles."),
		LegsSucceeded:   counter("legs_succeeded_total", "Total number of swap legs that produced output."),
		LegsFailed:      counter("legs_failed_total", "Total number of swap legs that failed."),
		StrayResults:    counter("stray_results_total", "Total number of swap results that matched no pending leg."),
		SubmitFailed:    counter("submit_failed_total", "Total number of swap submissions rejected by the router."),
		KeeperErrors:    counter("keeper_errors_total", "Total number of keeper ticks that failed."),
		TradesRemaining: promGauge{p.tradesRemaining},
	}
	return p
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
