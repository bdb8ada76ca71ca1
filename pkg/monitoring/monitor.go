package monitoring

import (
	"strconv"
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
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	ExamsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exam_sessions_started_total",
			Help: "Exam sessions created after a successful entitlement reserve",
		},
	)

	EvaluationsAssigned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "evaluations_assigned_total",
			Help: "Evaluations assigned to teachers",
		},
	)

	EvaluationsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evaluations_completed_total",
			Help: "Completed evaluations, partitioned by whether the SLA was breached",
		},
		[]string{"breached"},
	)

	SlaBreachesDetected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sla_breaches_detected_total",
			Help: "Open evaluations newly observed past their deadline by the sweep",
		},
	)

	OverdueEvaluations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "evaluations_overdue",
			Help: "Open evaluations currently past their deadline",
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(ExamsStarted)
	prometheus.MustRegister(EvaluationsAssigned)
	prometheus.MustRegister(EvaluationsCompleted)
	prometheus.MustRegister(SlaBreachesDetected)
	prometheus.MustRegister(OverdueEvaluations)
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
