package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FileResolutions counts file cache outcomes by kind and origin (cache, upload, fallback, error).
	FileResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tentor_file_resolutions_total",
			Help: "Provider file resolutions by document kind and outcome.",
		},
		[]string{"kind", "origin"},
	)

	FileUploadSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tentor_file_upload_seconds",
			Help:    "Time spent fetching and uploading a document to the provider.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	ChatStreams = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tentor_chat_streams_total",
			Help: "Chat completion streams by model and result.",
		},
		[]string{"model", "result"},
	)

	AuditDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tentor_audit_dropped_total",
			Help: "Chat turns dropped because the audit queue was full.",
		},
	)

	AuditFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tentor_audit_failed_total",
			Help: "Chat turns that failed to persist.",
		},
	)

	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tentor_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		},
		[]string{"scope"},
	)

	RequestLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tentor_request_latency_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60, 120},
		},
		[]string{"path", "method", "status_code"},
	)
)

// Register is called once in main() to register metrics.
func Register() {
	prometheus.MustRegister(
		FileResolutions,
		FileUploadSeconds,
		ChatStreams,
		AuditDropped,
		AuditFailed,
		RateLimited,
		RequestLatencySeconds,
	)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request latency keyed by route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		RequestLatencySeconds.
			WithLabelValues(path, c.Request.Method, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
