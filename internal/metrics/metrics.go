// Package metrics exposes Prometheus instrumentation for the service.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WebhooksReceived counts webhook deliveries by event type.
	WebhooksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pullsense_webhooks_received_total",
		Help: "Webhook deliveries received, labeled by GitHub event type.",
	}, []string{"event"})

	// JobsProcessed counts finished analysis jobs by outcome status.
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pullsense_jobs_processed_total",
		Help: "Analysis jobs processed, labeled by review status.",
	}, []string{"status"})

	// EventsBroadcast counts payloads fanned out to websocket clients.
	EventsBroadcast = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pullsense_events_broadcast_total",
		Help: "Event payloads broadcast to connected websocket clients.",
	})

	// WSConnections tracks currently registered websocket connections.
	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pullsense_ws_connections",
		Help: "Currently connected websocket clients.",
	})
)

// Handler returns the scrape endpoint handler.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
