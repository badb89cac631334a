package incidents

import (
	"github.com/bissquit/onestop-itsm/internal/domain"
	"github.com/bissquit/onestop-itsm/internal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	incidentSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "incidents",
			Name:      "saves_total",
			Help:      "Total incident saves by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	activityEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "incidents",
			Name:      "activity_entries_total",
			Help:      "Total activity log entries appended by type",
		},
		[]string{"type"},
	)
)

func recordSave(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	incidentSaves.WithLabelValues(operation, outcome).Inc()
}

func recordActivity(entries []domain.IncidentActivity) {
	for _, e := range entries {
		activityEntries.WithLabelValues(string(e.Type)).Inc()
	}
}
