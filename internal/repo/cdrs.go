package repo

import (
	"context"
	"errors"
	"time"

	"ocpi/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CdrsRepo struct{ db *pgxpool.Pool }

func NewCdrsRepo(db *pgxpool.Pool) *CdrsRepo { return &CdrsRepo{db: db} }

const cdrColumns = `cdr_id::text, tenant_id, transaction_database_id, transaction_id, location_id, station_id, evse_id, connector_id, id_token, authorization_reference, start_time, end_time, total_energy, total_time_seconds, total_parking_seconds, total_cost::float8, currency, created_at`

// CreateForTransaction stores the CDR of a transaction. Idempotent: one CDR per
// transaction, a repeated call returns the stored one.
func (r *CdrsRepo) CreateForTransaction(ctx context.Context, c models.CDR) (*models.CDR, error) {
	_, err := r.db.Exec(ctx, `
		insert into cdrs (cdr_id, tenant_id, transaction_database_id, transaction_id, location_id, station_id, evse_id, connector_id, id_token, authorization_reference, start_time, end_time, total_energy, total_time_seconds, total_parking_seconds, total_cost, currency)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		on conflict (transaction_database_id) do nothing
	`, c.ID, c.TenantID, c.TransactionDatabaseID, c.TransactionID, c.LocationID, c.StationID, c.EvseID, c.ConnectorID, c.IDToken, c.AuthorizationReference,
		c.StartTime, c.EndTime, c.TotalEnergy, int64(c.TotalTime/time.Second), int64(c.TotalParkingTime/time.Second), c.TotalCost, c.Currency)
	if err != nil {
		return nil, err
	}
	return scanCdr(r.db.QueryRow(ctx, `select `+cdrColumns+` from cdrs where transaction_database_id=$1`, c.TransactionDatabaseID))
}

func (r *CdrsRepo) Get(ctx context.Context, tenantID int, id string) (*models.CDR, error) {
	return scanCdr(r.db.QueryRow(ctx, `select `+cdrColumns+` from cdrs where tenant_id=$1 and cdr_id=$2`, tenantID, id))
}

func scanCdr(row pgx.Row) (*models.CDR, error) {
	var c models.CDR
	var totalSecs, parkingSecs int64
	if err := row.Scan(&c.ID, &c.TenantID, &c.TransactionDatabaseID, &c.TransactionID, &c.LocationID, &c.StationID, &c.EvseID, &c.ConnectorID, &c.IDToken, &c.AuthorizationReference,
		&c.StartTime, &c.EndTime, &c.TotalEnergy, &totalSecs, &parkingSecs, &c.TotalCost, &c.Currency, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.TotalTime = time.Duration(totalSecs) * time.Second
	c.TotalParkingTime = time.Duration(parkingSecs) * time.Second
	return &c, nil
}
