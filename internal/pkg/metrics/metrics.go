package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SamplesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clubtrack",
		Subsystem: "tracking",
		Name:      "samples_processed_total",
		Help:      "Position feed events processed by trackers",
	}, []string{"result"})

	ZoneTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clubtrack",
		Subsystem: "tracking",
		Name:      "zone_transitions_total",
		Help:      "Zone entry and exit edges detected",
	}, []string{"direction"})

	PersistenceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clubtrack",
		Subsystem: "sessions",
		Name:      "persistence_failures_total",
		Help:      "Session create/close calls that failed after retries",
	}, []string{"op"})

	SessionsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "clubtrack",
		Subsystem: "sessions",
		Name:      "opened_total",
		Help:      "Attendance sessions opened",
	})

	SessionsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clubtrack",
		Subsystem: "sessions",
		Name:      "closed_total",
		Help:      "Attendance sessions closed",
	}, []string{"reason"})

	ActiveTrackers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "clubtrack",
		Subsystem: "tracking",
		Name:      "active_trackers",
		Help:      "Trackers currently consuming a position feed",
	})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clubtrack",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Boundary and day status cache lookups",
	}, []string{"kind", "result"})
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
