package repo

import (
	"context"
	"time"

	"ocpi/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventsRepo reads the connector status notification history.
type EventsRepo struct{ db *pgxpool.Pool }

func NewEventsRepo(db *pgxpool.Pool) *EventsRepo { return &EventsRepo{db: db} }

func (r *EventsRepo) InsertStatus(ctx context.Context, tenantID int, stationID string, connectorID int, status string, ts time.Time) error {
	_, err := r.db.Exec(ctx, `
		insert into status_notifications (tenant_id, station_id, connector_id, status, timestamp)
		values ($1,$2,$3,$4,$5)
	`, tenantID, stationID, connectorID, status, ts)
	return err
}

// ListStatusEvents returns the status events inside [start, end] plus the last
// event before start, which defines the state entering the window. Ascending.
func (r *EventsRepo) ListStatusEvents(ctx context.Context, tenantID int, stationID string, connectorID int, start, end time.Time) ([]models.StatusEvent, error) {
	rows, err := r.db.Query(ctx, `
		(select timestamp, status from status_notifications
		 where tenant_id=$1 and station_id=$2 and connector_id=$3 and timestamp < $4
		 order by timestamp desc limit 1)
		union all
		(select timestamp, status from status_notifications
		 where tenant_id=$1 and station_id=$2 and connector_id=$3 and timestamp between $4 and $5)
		order by timestamp asc
	`, tenantID, stationID, connectorID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.StatusEvent
	for rows.Next() {
		var e models.StatusEvent
		if err := rows.Scan(&e.Timestamp, &e.Status); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
