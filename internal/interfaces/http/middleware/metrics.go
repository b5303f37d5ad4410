package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPDurationBuckets are the latency buckets of the request histogram, in seconds
var HTTPDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// httpMetrics holds the HTTP instruments
type httpMetrics struct {
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
}

// HTTPMetrics registers request instruments on reg and returns the
// middleware that records them. Requests matching no route are recorded
// under the route "unmatched".
func HTTPMetrics(reg prometheus.Registerer) (gin.HandlerFunc, error) {
	m := &httpMetrics{
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orderdesk",
			Name:      "http_server_request_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "orderdesk",
			Name:      "http_server_request_duration_seconds",
			Help:      "HTTP request latency distribution in seconds",
			Buckets:   HTTPDurationBuckets,
		}, []string{"method", "route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "orderdesk",
			Name:      "http_server_active_requests",
			Help:      "Number of HTTP requests being served",
		}),
	}
	for _, c := range []prometheus.Collector{m.requestTotal, m.requestDuration, m.inFlight} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return func(c *gin.Context) {
		start := time.Now()
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		c.Next()

		route := getRoutePattern(c)
		m.requestTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}, nil
}

// getRoutePattern returns the matched route, keeping label cardinality bounded
func getRoutePattern(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}
