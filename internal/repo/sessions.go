package repo

import (
	"context"
	"encoding/json"
	"errors"

	"ocpi/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionsRepo reads transactions and their meter values.
type SessionsRepo struct{ db *pgxpool.Pool }

func NewSessionsRepo(db *pgxpool.Pool) *SessionsRepo { return &SessionsRepo{db: db} }

const transactionColumns = `id, tenant_id, transaction_id, station_id, evse_id, connector_id, location_id, is_active, start_time, end_time, total_kwh, id_token, id_token_type, authorization_reference, tariff_id, updated_at`

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	if err := row.Scan(&t.ID, &t.TenantID, &t.TransactionID, &t.StationID, &t.EvseID, &t.ConnectorID, &t.LocationID, &t.IsActive, &t.StartTime, &t.EndTime, &t.TotalKwh, &t.IDToken, &t.IDTokenType, &t.AuthorizationReference, &t.TariffID, &t.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *SessionsRepo) Start(ctx context.Context, t models.Transaction) (int, error) {
	row := r.db.QueryRow(ctx, `
		insert into transactions (tenant_id, transaction_id, station_id, evse_id, connector_id, location_id, is_active, start_time, id_token, id_token_type, tariff_id)
		values ($1,$2,$3,$4,$5,$6,true,$7,$8,$9,$10)
		returning id
	`, t.TenantID, t.TransactionID, t.StationID, t.EvseID, t.ConnectorID, t.LocationID, t.StartTime, t.IDToken, t.IDTokenType, t.TariffID)

	var id int
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// GetByID returns the transaction with its recorded meter values.
func (r *SessionsRepo) GetByID(ctx context.Context, tenantID, id int) (*models.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRow(ctx, `select `+transactionColumns+` from transactions where tenant_id=$1 and id=$2`, tenantID, id))
	if err != nil || t == nil {
		return t, err
	}
	t.MeterValues, err = r.ListMeterValues(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// FindByTransactionID looks a transaction up by the identifier exposed to partners.
func (r *SessionsRepo) FindByTransactionID(ctx context.Context, tenantID int, transactionID string) (*models.Transaction, error) {
	return scanTransaction(r.db.QueryRow(ctx, `
		select `+transactionColumns+`
		from transactions
		where tenant_id=$1 and transaction_id=$2
		order by start_time desc
		limit 1
	`, tenantID, transactionID))
}

func (r *SessionsRepo) SetAuthorizationReference(ctx context.Context, id int, ref string) error {
	_, err := r.db.Exec(ctx, `update transactions set authorization_reference=$2, updated_at=now() where id=$1`, id, ref)
	return err
}

func (r *SessionsRepo) End(ctx context.Context, id int, t models.Transaction) error {
	_, err := r.db.Exec(ctx, `
		update transactions set is_active=false, end_time=$2, total_kwh=$3, updated_at=now()
		where id=$1
	`, id, t.EndTime, t.TotalKwh)
	return err
}

func (r *SessionsRepo) InsertMeterValue(ctx context.Context, mv models.MeterValue) (int, error) {
	samples, err := json.Marshal(mv.SampledValues)
	if err != nil {
		return 0, err
	}
	row := r.db.QueryRow(ctx, `
		insert into meter_values (tenant_id, transaction_database_id, tariff_id, timestamp, sampled_values)
		values ($1,$2,$3,$4,$5)
		returning id
	`, mv.TenantID, mv.TransactionDatabaseID, mv.TariffID, mv.Timestamp, samples)
	var id int
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *SessionsRepo) ListMeterValues(ctx context.Context, transactionDatabaseID int) ([]models.MeterValue, error) {
	rows, err := r.db.Query(ctx, `
		select id, tenant_id, transaction_database_id, tariff_id, timestamp, sampled_values
		from meter_values where transaction_database_id=$1
		order by timestamp asc
	`, transactionDatabaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MeterValue
	for rows.Next() {
		var mv models.MeterValue
		var samples []byte
		if err := rows.Scan(&mv.ID, &mv.TenantID, &mv.TransactionDatabaseID, &mv.TariffID, &mv.Timestamp, &samples); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(samples, &mv.SampledValues); err != nil {
			return nil, err
		}
		out = append(out, mv)
	}
	return out, rows.Err()
}
