package services

import (
	"testing"
	"time"

	"ocpi/internal/models"

	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func ev(offset time.Duration, status string) models.StatusEvent {
	return models.StatusEvent{Timestamp: t0.Add(offset), Status: status}
}

func TestIdleDuration(t *testing.T) {
	tests := []struct {
		name   string
		events []models.StatusEvent
		start  time.Time
		end    time.Time
		want   time.Duration
	}{
		{
			name: "preparing span between charging",
			events: []models.StatusEvent{
				ev(0, models.ConnectorCharging),
				ev(5*time.Minute, models.ConnectorPreparing),
				ev(8*time.Minute, models.ConnectorCharging),
			},
			start: t0,
			end:   t0.Add(8 * time.Minute),
			want:  3 * time.Minute,
		},
		{
			name:  "no events",
			start: t0,
			end:   t0.Add(time.Hour),
			want:  0,
		},
		{
			name: "idle until session end",
			events: []models.StatusEvent{
				ev(0, models.ConnectorCharging),
				ev(50*time.Minute, models.ConnectorSuspendedEV),
			},
			start: t0,
			end:   t0.Add(time.Hour),
			want:  10 * time.Minute,
		},
		{
			name: "state entering the window counts",
			events: []models.StatusEvent{
				ev(-10*time.Minute, models.ConnectorSuspendedEVSE),
				ev(4*time.Minute, models.ConnectorCharging),
			},
			start: t0,
			end:   t0.Add(20 * time.Minute),
			want:  4 * time.Minute,
		},
		{
			name: "events after end are ignored",
			events: []models.StatusEvent{
				ev(0, models.ConnectorPreparing),
				ev(2*time.Minute, models.ConnectorCharging),
				ev(30*time.Minute, models.ConnectorSuspendedEV),
			},
			start: t0,
			end:   t0.Add(10 * time.Minute),
			want:  2 * time.Minute,
		},
		{
			name: "finishing is not idle",
			events: []models.StatusEvent{
				ev(0, models.ConnectorFinishing),
			},
			start: t0,
			end:   t0.Add(10 * time.Minute),
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IdleDuration(tt.events, tt.start, tt.end))
		})
	}
}
