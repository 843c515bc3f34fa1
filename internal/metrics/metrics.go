package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "huertohogar",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "huertohogar",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "huertohogar",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	cartMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "huertohogar",
			Subsystem: "cart",
			Name:      "mutations_total",
			Help:      "Cart writes by operation and outcome.",
		},
		[]string{"op", "result"},
	)

	orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "huertohogar",
			Subsystem: "checkout",
			Name:      "orders_total",
			Help:      "Checkout confirmations by outcome.",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		cartMutations,
		orders,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request count and latency per route template, so
// /v1/products/1 and /v1/products/2 share a series.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == "/metrics" {
				return next(c)
			}
			start := time.Now()
			httpInFlight.Inc()
			defer httpInFlight.Dec()

			err := next(c)
			if err != nil {
				// let echo write the error response so the status is final
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := strings.ToUpper(c.Request().Method)
			httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Response().Status)).Inc()
			httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// RecordCartMutation counts a cart write.  op is add, update or remove.
func RecordCartMutation(op string, err error) {
	cartMutations.WithLabelValues(op, result(err)).Inc()
}

// RecordOrder counts a checkout confirmation attempt.
func RecordOrder(err error) {
	orders.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
