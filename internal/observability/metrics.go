package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ArticleTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metareview_article_transitions_total",
			Help: "Article status transitions by source and target status",
		},
		[]string{"from", "to"},
	)
	ArticlesImported = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metareview_articles_imported_total",
			Help: "Articles created from uploaded files",
		},
		[]string{"kind"},
	)
	ImportErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metareview_import_errors_total",
			Help: "Entries skipped during import",
		},
		[]string{"kind"},
	)
	NotificationsDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metareview_notifications_delivered_total",
			Help: "Notifications delivered per sink and outcome",
		},
		[]string{"sink", "outcome"},
	)
	NotificationsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "metareview_notifications_dropped_total",
			Help: "Events dropped because the dispatch queue was full",
		},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metareview_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		ArticleTransitions,
		ArticlesImported,
		ImportErrors,
		NotificationsDelivered,
		NotificationsDropped,
		HTTPDuration,
	)
}

// GinMiddleware records request latency per matched route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
