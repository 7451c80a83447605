package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courier",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route template and status.",
	}, []string{"method", "route", "status"})

	httpRequestDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "courier",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency. Sends that call a provider synchronously dominate the upper buckets.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"method", "route"})
)

// HTTPMiddleware records request counts and latency labelled by route template, so
// message ids in paths do not create new series. skip lists paths left uninstrumented.
func HTTPMiddleware(skip ...string) echo.MiddlewareFunc {
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipped[c.Request().URL.Path] {
				return next(c)
			}
			start := time.Now()
			err := next(c)
			if err != nil {
				// let echo write the error response so the recorded status is final
				c.Error(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Response().Status)).Inc()
			httpRequestDurationSeconds.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
