// Package status carries the server's observability surface: the
// Prometheus metrics registered for /metrics, and a websocket hub that
// pushes periodic session/client summaries to /status subscribers. Neither
// has any visibility into the wire protocol itself.
package status

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "timecodesvr_session_count",
		Help: "Number of sessions currently held by the registry.",
	})
	clientCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "timecodesvr_client_count",
		Help: "Number of clients currently connected.",
	})
	ticksEmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timecodesvr_ticks_emitted_total",
		Help: "Total timecode_update frames emitted across all sessions.",
	})
)

// IncTicksEmitted increments the tick counter. server.New wires it as every
// session's onTick hook, so it runs on each tick whether or not /metrics is
// served.
func IncTicksEmitted() {
	ticksEmittedTotal.Inc()
}

// SetSessionCount sets the session_count gauge to n.
func SetSessionCount(n int) {
	sessionCount.Set(float64(n))
}

// SetClientCount sets the client_count gauge to n.
func SetClientCount(n int) {
	clientCount.Set(float64(n))
}
