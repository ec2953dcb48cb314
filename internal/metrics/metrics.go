package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatapp_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatapp_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	UsersRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatapp_users_registered_total",
			Help: "Total users auto-registered on first login",
		},
	)

	MessagesStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatapp_messages_stored_total",
			Help: "Total messages persisted",
		},
	)

	LiveDeliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatapp_live_deliveries_total",
			Help: "Total messages delivered over the live channel",
		},
	)

	PushAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatapp_push_attempts_total",
			Help: "Web push dispatch outcomes",
		},
		[]string{"result"}, // "sent", "failed" or "pruned"
	)

	// Live channel metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatapp_ws_connections",
			Help: "Currently open websocket connections",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatapp_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)
)
