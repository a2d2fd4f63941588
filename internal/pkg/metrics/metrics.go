package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "osmdash",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "osmdash",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "osmdash",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Overpass metrics
	OverpassRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "osmdash",
		Subsystem: "overpass",
		Name:      "requests_total",
		Help:      "Total Overpass requests by outcome",
	}, []string{"outcome"})

	OverpassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "osmdash",
		Subsystem: "overpass",
		Name:      "request_duration_seconds",
		Help:      "Duration of Overpass requests",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15, 30},
	})

	OverpassElements = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "osmdash",
		Subsystem: "overpass",
		Name:      "elements_returned",
		Help:      "Number of elements in each Overpass response",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
	})

	// Scheduler metrics
	FetchesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "osmdash",
		Subsystem: "scheduler",
		Name:      "fetches_started_total",
		Help:      "Total fetches started by the query scheduler",
	})

	FetchesSuperseded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "osmdash",
		Subsystem: "scheduler",
		Name:      "fetches_superseded_total",
		Help:      "Fetches cancelled or discarded because a newer one was issued",
	})

	FetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "osmdash",
		Subsystem: "scheduler",
		Name:      "fetch_errors_total",
		Help:      "Fetches that failed, by kind",
	}, []string{"kind"})

	VisiblePOIs = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "osmdash",
		Subsystem: "scheduler",
		Name:      "visible_pois",
		Help:      "POIs visible in the most recent snapshot",
	})

	SnapshotsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "osmdash",
		Subsystem: "scheduler",
		Name:      "snapshots_published_total",
		Help:      "Total snapshots published to subscribers",
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "osmdash",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}
