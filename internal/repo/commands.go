package repo

import (
	"context"

	"ocpi/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

type CommandsRepo struct{ db *pgxpool.Pool }

func NewCommandsRepo(db *pgxpool.Pool) *CommandsRepo { return &CommandsRepo{db: db} }

func (r *CommandsRepo) Create(ctx context.Context, c models.CommandRecord) (string, error) {
	row := r.db.QueryRow(ctx, `
        insert into commands (tenant_id, partner_id, station_id, type, correlation_id, payload, status)
        values ($1,$2,$3,$4,$5,$6,$7)
        returning command_id::text
    `, c.TenantID, nullableInt(c.PartnerID), c.StationID, c.Type, c.CorrelationID, c.PayloadJSON, c.Status)

	var id string
	if err := row.Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

func (r *CommandsRepo) MarkAcked(ctx context.Context, id string, response []byte) error {
	_, err := r.db.Exec(ctx, `update commands set status='Acked', response=$2, updated_at=now() where command_id=$1`, id, response)
	return err
}

func (r *CommandsRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	_, err := r.db.Exec(ctx, `update commands set status='Failed', error=$2, updated_at=now() where command_id=$1`, id, errMsg)
	return err
}

func nullableInt(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}
