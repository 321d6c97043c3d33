package services

import (
	"time"

	"ocpi/internal/models"
)

var idleStatuses = map[string]bool{
	models.ConnectorSuspendedEVSE: true,
	models.ConnectorSuspendedEV:   true,
	models.ConnectorPreparing:     true,
}

func IsIdleStatus(status string) bool { return idleStatuses[status] }

// IdleDuration sums the time inside [start, end] spent in an idle status.
// events must be sorted by timestamp ascending. An event before start sets the
// status entering the window.
func IdleDuration(events []models.StatusEvent, start, end time.Time) time.Duration {
	var idle time.Duration
	last := start
	lastStatus := ""

	for _, ev := range events {
		if ev.Timestamp.Before(start) {
			lastStatus = ev.Status
			continue
		}
		if ev.Timestamp.After(end) {
			break
		}
		if IsIdleStatus(lastStatus) {
			idle += ev.Timestamp.Sub(last)
		}
		last = ev.Timestamp
		lastStatus = ev.Status
	}

	if IsIdleStatus(lastStatus) && end.After(last) {
		idle += end.Sub(last)
	}
	return idle
}
