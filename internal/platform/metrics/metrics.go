// Package metrics defines the Prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SeriesFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "futures_series_fetches_total",
			Help: "Total number of price series fetches",
		},
		[]string{"kind", "range", "outcome"}, // outcome: ok|insufficient|error
	)

	SeriesFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "futures_series_fetch_duration_seconds",
			Help:    "Price series fetch latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"kind"},
	)

	LiveDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "futures_live_deliveries_total",
			Help: "Live price samples delivered to subscribers",
		},
		[]string{"channel"},
	)

	LiveSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "futures_live_subscribers",
			Help: "Active live price subscriptions",
		},
	)

	GatewayCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "futures_gateway_calls_total",
			Help: "Chain gateway calls",
		},
		[]string{"endpoint", "status"}, // status: success|error
	)

	Transactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "futures_transactions_total",
			Help: "Submitted transactions by action and result",
		},
		[]string{"action", "result"}, // result: confirmed|rejected|unconfirmed|pending_conflict|invalid|error
	)

	ChartStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "futures_chart_streams",
			Help: "Open chart websocket streams",
		},
	)
)

var once sync.Once

// Init registers all collectors with the default registry. Safe to call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(SeriesFetches)
		prometheus.MustRegister(SeriesFetchDuration)
		prometheus.MustRegister(LiveDeliveries)
		prometheus.MustRegister(LiveSubscribers)
		prometheus.MustRegister(GatewayCalls)
		prometheus.MustRegister(Transactions)
		prometheus.MustRegister(ChartStreams)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
