package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method", "endpoint"},
	)

	ProblemsServed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "problems_served_total",
			Help: "Problems served, by origin (cache or ai)",
		},
		[]string{"origin"},
	)

	CacheWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "problem_cache_write_failures_total",
			Help: "Failed asynchronous problem cache write-backs",
		},
	)

	AdmissionDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_admission_denials_total",
			Help: "Problem generation requests denied by the quota ledger, by reason",
		},
		[]string{"reason"},
	)

	LeaderboardSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leaderboard_submissions_total",
			Help: "Leaderboard score submissions, by result",
		},
		[]string{"result"},
	)
)

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			ProblemsServed,
			CacheWriteFailures,
			AdmissionDenials,
			LeaderboardSubmissions,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
