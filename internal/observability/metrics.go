// Package observability exposes Prometheus metrics and the debug HTTP server.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the instrumentation surface used by the watcher, the
// dispatcher and the search path.
type Metrics interface {
	ObserveTick(result string, took time.Duration)
	IncTickSkipped()
	AddNewListings(n int)
	SetListings(n int)
	IncSend(target, result string)
	IncSearch(result string)
}

// Nop returns a Metrics that records nothing.
func Nop() Metrics { return noopMetrics{} }

// Prometheus implements Metrics on a dedicated registry.
type Prometheus struct {
	reg *prometheus.Registry

	ticks        *prometheus.CounterVec
	tickDuration prometheus.Histogram
	tickSkipped  prometheus.Counter
	lastTick     prometheus.Gauge
	newListings  prometheus.Counter
	listings     prometheus.Gauge
	sends        *prometheus.CounterVec
	searches     *prometheus.CounterVec
}

func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Prometheus{
		reg: reg,
		ticks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auctionwatch_ticks_total",
			Help: "Pipeline ticks by result",
		}, []string{"result"}),
		tickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "auctionwatch_tick_duration_seconds",
			Help:    "Pipeline tick duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		tickSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "auctionwatch_ticks_skipped_total",
			Help: "Ticks skipped because a run was still in progress",
		}),
		lastTick: f.NewGauge(prometheus.GaugeOpts{
			Name: "auctionwatch_last_tick_timestamp_seconds",
			Help: "Unix time of the last completed tick",
		}),
		newListings: f.NewCounter(prometheus.CounterOpts{
			Name: "auctionwatch_new_listings_total",
			Help: "Listings detected as new",
		}),
		listings: f.NewGauge(prometheus.GaugeOpts{
			Name: "auctionwatch_listings",
			Help: "Listings in the last fetched snapshot",
		}),
		sends: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auctionwatch_sends_total",
			Help: "Message deliveries by target kind and result",
		}, []string{"target", "result"}),
		searches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auctionwatch_searches_total",
			Help: "On-demand searches by result",
		}, []string{"result"}),
	}
}

// Registry returns the registry backing the collectors.
func (m *Prometheus) Registry() *prometheus.Registry { return m.reg }

func (m *Prometheus) ObserveTick(result string, took time.Duration) {
	m.ticks.WithLabelValues(result).Inc()
	m.tickDuration.Observe(took.Seconds())
	m.lastTick.SetToCurrentTime()
}

func (m *Prometheus) IncTickSkipped() { m.tickSkipped.Inc() }

func (m *Prometheus) AddNewListings(n int) {
	if n > 0 {
		m.newListings.Add(float64(n))
	}
}

func (m *Prometheus) SetListings(n int) { m.listings.Set(float64(n)) }

func (m *Prometheus) IncSend(target, result string) {
	m.sends.WithLabelValues(target, result).Inc()
}

func (m *Prometheus) IncSearch(result string) { m.searches.WithLabelValues(result).Inc() }

type noopMetrics struct{}

func (noopMetrics) ObserveTick(string, time.Duration) {}
func (noopMetrics) IncTickSkipped()                   {}
func (noopMetrics) AddNewListings(int)                {}
func (noopMetrics) SetListings(int)                   {}
func (noopMetrics) IncSend(string, string)            {}
func (noopMetrics) IncSearch(string)                  {}
