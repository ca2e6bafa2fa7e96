package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	bucketsCreated  *prometheus.CounterVec
	bucketsDeleted  prometheus.Counter
	bucketsReaped   prometheus.Counter
	uploadBytes     prometheus.Counter
)

// InitMetrics registers the application collectors. Safe to call repeatedly.
func InitMetrics() {
	once.Do(func() {
		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hastebucket_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"method", "path", "status"})

		requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hastebucket_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"})

		bucketsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hastebucket_buckets_created_total",
			Help: "Buckets created, by kind.",
		}, []string{"kind"})

		bucketsDeleted = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hastebucket_buckets_deleted_total",
			Help: "Buckets deleted by their owner.",
		})

		bucketsReaped = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hastebucket_buckets_reaped_total",
			Help: "Buckets purged by the retention sweep.",
		})

		uploadBytes = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hastebucket_upload_bytes_total",
			Help: "Total bytes accepted through file uploads.",
		})

		prometheus.MustRegister(
			requestsTotal,
			requestDuration,
			bucketsCreated,
			bucketsDeleted,
			bucketsReaped,
			uploadBytes,
		)
	})
}

// Middleware records request counts and latency per route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		requestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		requestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}

// BucketCreated counts a successful create, labeled by kind ("text" or "file").
func BucketCreated(kind string) {
	if bucketsCreated != nil {
		bucketsCreated.WithLabelValues(kind).Inc()
	}
}

// BucketDeleted counts an owner-initiated delete.
func BucketDeleted() {
	if bucketsDeleted != nil {
		bucketsDeleted.Inc()
	}
}

// BucketsReaped counts records purged by the sweep.
func BucketsReaped(n int) {
	if bucketsReaped != nil && n > 0 {
		bucketsReaped.Add(float64(n))
	}
}

// UploadBytes accumulates accepted upload sizes.
func UploadBytes(n int64) {
	if uploadBytes != nil && n > 0 {
		uploadBytes.Add(float64(n))
	}
}
