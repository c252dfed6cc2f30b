// Package metrics provides Prometheus instrumentation for the market simulation.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TicksTotal counts completed simulation ticks.
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tickmarket_ticks_total",
		Help: "Total number of completed ticks",
	})

	// TickDuration tracks wall time spent collecting and matching one tick.
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tickmarket_tick_duration_seconds",
		Help:    "Tick processing time in seconds",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	})

	// OrdersTotal counts proposed orders, partitioned by asset and side.
	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tickmarket_orders_total",
		Help: "Total number of orders proposed",
	}, []string{"asset", "side"})

	// TradesTotal counts executed trades per asset.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tickmarket_trades_total",
		Help: "Total number of trades executed",
	}, []string{"asset"})

	// VolumeTotal tracks cumulative traded units per asset.
	VolumeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tickmarket_volume_total",
		Help: "Cumulative traded units",
	}, []string{"asset"})

	// CappedTradesTotal counts trades shrunk or skipped by the execution-time
	// feasibility check.
	CappedTradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tickmarket_capped_trades_total",
		Help: "Trades capped or skipped because a side could not fully pay or deliver",
	}, []string{"asset"})

	// ClearingPrice is the latest clearing price per asset.
	ClearingPrice = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tickmarket_clearing_price",
		Help: "Latest clearing price",
	}, []string{"asset"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tickmarket_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tickmarket_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tickmarket_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// AssetTick is one asset's contribution to a tick's metrics.
type AssetTick struct {
	Asset  string
	Buys   int
	Sells  int
	Trades int
	Volume int64
	Capped int
	Price  float64
}

// RecordTick records a completed tick.
func RecordTick(elapsed time.Duration, assets []AssetTick) {
	TicksTotal.Inc()
	TickDuration.Observe(elapsed.Seconds())
	for _, a := range assets {
		OrdersTotal.WithLabelValues(a.Asset, "buy").Add(float64(a.Buys))
		OrdersTotal.WithLabelValues(a.Asset, "sell").Add(float64(a.Sells))
		TradesTotal.WithLabelValues(a.Asset).Add(float64(a.Trades))
		VolumeTotal.WithLabelValues(a.Asset).Add(float64(a.Volume))
		CappedTradesTotal.WithLabelValues(a.Asset).Add(float64(a.Capped))
		ClearingPrice.WithLabelValues(a.Asset).Set(a.Price)
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for the path label to avoid high cardinality.
		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack passes websocket upgrades through to the underlying writer.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}
