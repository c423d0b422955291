package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/postledger/internal/postledger"
	"github.com/jmerrifield20/postledger/internal/webhooks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	postledgerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postledger_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	postledgerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "postledger_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	postledgerPostsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "postledger_posts_created_total",
		Help: "Total posts appended since start-up.",
	})

	postledgerLastPostID = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "postledger_last_post_id",
		Help: "Id of the most recently created post.",
	})

	postledgerSinkEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postledger_sink_events_total",
		Help: "Notifications handled by each sink, by outcome.",
	}, []string{"sink", "outcome"})

	postledgerWebhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postledger_webhook_deliveries_total",
		Help: "Total webhook deliveries by success status.",
	}, []string{"status"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		postledgerRequestsTotal.WithLabelValues(method, path, status).Inc()
		postledgerRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// PostMetrics is a ledger listener that counts created posts.
var PostMetrics = postledger.ListenerFunc(func(ev postledger.PostCreated) {
	postledgerPostsCreatedTotal.Inc()
	postledgerLastPostID.Set(float64(ev.ID))
})

// RecordSinkOutcome records one notification outcome for a sink.
// It has the signature of events.MetricsRecorder.
func RecordSinkOutcome(sink, outcome string) {
	postledgerSinkEventsTotal.WithLabelValues(sink, outcome).Inc()
}

// RecordWebhookDelivery records a webhook delivery attempt.
func RecordWebhookDelivery(d webhooks.Delivery) {
	if d.Success {
		postledgerWebhookDeliveriesTotal.WithLabelValues("success").Inc()
	} else {
		postledgerWebhookDeliveriesTotal.WithLabelValues("failure").Inc()
	}
}
