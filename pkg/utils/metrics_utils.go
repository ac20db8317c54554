package utils

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricsOnce sync.Once
	metricsErr  error

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	clientSearchesTotal *prometheus.CounterVec
	loginThrottledTotal prometheus.Counter
)

// RegisterMetrics creates the application collectors on reg (the default
// registerer when nil) and returns the /metrics handler.
func RegisterMetrics(reg prometheus.Registerer) (http.Handler, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	metricsOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of processed HTTP requests",
		}, []string{"method", "path", "status"})

		httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"})

		clientSearchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "client_searches_total",
			Help: "Client listing queries by outcome",
		}, []string{"result"}) // result: ok|invalid|failed

		loginThrottledTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "login_throttled_total",
			Help: "Login attempts rejected because of too many recent failures",
		})

		for _, c := range []prometheus.Collector{httpRequestsTotal, httpRequestDuration, clientSearchesTotal, loginThrottledTotal} {
			if err := registerCollector(reg, c); err != nil {
				metricsErr = err
				return
			}
		}
	})
	if metricsErr != nil {
		return nil, metricsErr
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		return promhttp.HandlerFor(g, promhttp.HandlerOpts{}), nil
	}
	return promhttp.Handler(), nil
}

// registerCollector registers c on reg, ignoring duplicates.
func registerCollector(reg prometheus.Registerer, c prometheus.Collector) error {
	if err := reg.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// GinMetrics records request counts and latency labelled by the matched route.
func GinMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if httpRequestsTotal == nil {
			return
		}
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// RecordClientSearch counts one client listing with the given result label.
func RecordClientSearch(result string) {
	if clientSearchesTotal != nil {
		clientSearchesTotal.WithLabelValues(result).Inc()
	}
}

func RecordLoginThrottled() {
	if loginThrottledTotal != nil {
		loginThrottledTotal.Inc()
	}
}
