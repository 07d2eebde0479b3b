package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mardikor_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mardikor_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	orderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mardikor_order_transitions_total",
		Help: "Order status transitions by target status and result",
	}, []string{"to", "result"})

	settledAmount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mardikor_settled_amount_total",
		Help: "Currency units moved at settlement",
	}, []string{"kind"})

	messagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mardikor_messages_sent_total",
		Help: "Chat messages stored by content kind",
	}, []string{"kind"})

	notificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mardikor_notifications_created_total",
		Help: "Notifications created by type",
	}, []string{"type"})

	eventStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mardikor_event_streams_open",
		Help: "Open websocket event streams",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveTransition counts an attempted order transition.
func ObserveTransition(to, result string) {
	orderTransitions.WithLabelValues(to, result).Inc()
}

// ObserveSettlement adds the payout and commission of one completed order.
func ObserveSettlement(payout, commission int64) {
	settledAmount.WithLabelValues("payout").Add(float64(payout))
	settledAmount.WithLabelValues("commission").Add(float64(commission))
}

func ObserveMessage(kind string) {
	messagesSent.WithLabelValues(kind).Inc()
}

func ObserveNotification(typ string) {
	notificationsCreated.WithLabelValues(typ).Inc()
}

// StreamOpened and StreamClosed track live websocket subscribers.
func StreamOpened() { eventStreams.Inc() }

func StreamClosed() { eventStreams.Dec() }

// Middleware records every request under its route pattern so ids in the
// path don't explode label cardinality.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			ObserveHTTPRequest(c.Request().Method, path, strconv.Itoa(c.Response().Status), time.Since(start))
			return err
		}
	}
}

// Handler exposes the default registry.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
