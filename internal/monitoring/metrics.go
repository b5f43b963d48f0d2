// Package monitoring exposes Prometheus metrics for the decision engine.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Tick processing metrics
	ticksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "grid_engine_ticks_total",
			Help: "Total number of ticks processed",
		},
	)

	tickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "grid_engine_tick_duration_seconds",
			Help:    "Distribution of tick processing time",
			Buckets: prometheus.DefBuckets,
		},
	)

	actionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_engine_actions_total",
			Help: "Total number of actions emitted, by action type",
		},
		[]string{"action"},
	)

	// Grid metrics
	layersExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_engine_layers_executed_total",
			Help: "Total number of grid layers executed",
		},
		[]string{"side"},
	)

	hedgeDeployments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_engine_hedge_deployments_total",
			Help: "Total number of counter-hedge deployments",
		},
		[]string{"side", "scenario"},
	)

	sessionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_engine_sessions_closed_total",
			Help: "Total number of closed sessions, by close reason",
		},
		[]string{"side", "reason"},
	)

	// Market data metrics
	midPrice = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "grid_engine_mid_price",
			Help: "Current mid price of the tracked instrument",
		},
	)

	basketProfit = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "grid_engine_basket_profit",
			Help: "Floating profit of the open basket",
		},
		[]string{"side"},
	)

	// Error metrics
	saveFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "grid_engine_state_save_failures_total",
			Help: "Total number of failed state persistence attempts",
		},
	)
)

func init() {
	// Register metrics
	prometheus.MustRegister(ticksTotal)
	prometheus.MustRegister(tickDuration)
	prometheus.MustRegister(actionsTotal)
	prometheus.MustRegister(layersExecuted)
	prometheus.MustRegister(hedgeDeployments)
	prometheus.MustRegister(sessionsClosed)
	prometheus.MustRegister(midPrice)
	prometheus.MustRegister(basketProfit)
	prometheus.MustRegister(saveFailures)
}

// MetricsHandler handles the Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordTick records one processed tick and its duration
func RecordTick(d time.Duration) {
	ticksTotal.Inc()
	tickDuration.Observe(d.Seconds())
}

// RecordAction counts an emitted action by type
func RecordAction(action string) {
	actionsTotal.WithLabelValues(action).Inc()
}

// RecordLayer counts an executed grid layer
func RecordLayer(side string) {
	layersExecuted.WithLabelValues(side).Inc()
}

// RecordHedge counts a hedge deployment for the losing side
func RecordHedge(side, scenario string) {
	hedgeDeployments.WithLabelValues(side, scenario).Inc()
}

// RecordSessionClosed counts a confirmed session closure
func RecordSessionClosed(side, reason string) {
	sessionsClosed.WithLabelValues(side, reason).Inc()
}

// UpdateMidPrice updates the mid price gauge
func UpdateMidPrice(price float64) {
	midPrice.Set(price)
}

// UpdateBasketProfit updates the floating profit gauge for one side
func UpdateBasketProfit(side string, profit float64) {
	basketProfit.WithLabelValues(side).Set(profit)
}

// RecordSaveFailure counts a failed state save
func RecordSaveFailure() {
	saveFailures.Inc()
}
