package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ppchat"

// Backend labels for presence operations.
const (
	BackendRemote = "redis"
	BackendLocal  = "memory"
)

var (
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "active_sessions",
		Help:      "Realtime sessions currently registered on this process.",
	})

	InboundEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "inbound_events_total",
		Help:      "Inbound realtime events by name and outcome.",
	}, []string{"event", "outcome"})

	DroppedFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "dropped_frames_total",
		Help:      "Outbound frames dropped before reaching a session.",
	}, []string{"event", "reason"})

	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "auth_failures_total",
		Help:      "Rejected realtime handshakes.",
	}, []string{"reason"})

	PresenceOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "presence",
		Name:      "operations_total",
		Help:      "Presence store operations by backend that served them.",
	}, []string{"op", "backend"})

	PresenceFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "presence",
		Name:      "fallbacks_total",
		Help:      "Presence operations that fell back to the in-memory set.",
	}, []string{"op", "cause"})
)

// Handler exposes the default registry for gin.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
