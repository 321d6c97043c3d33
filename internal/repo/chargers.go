package repo

import (
	"context"
	"errors"

	"ocpi/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ChargersRepo struct{ db *pgxpool.Pool }

func NewChargersRepo(db *pgxpool.Pool) *ChargersRepo { return &ChargersRepo{db: db} }

func (r *ChargersRepo) Upsert(ctx context.Context, c models.ChargingStation) error {
	_, err := r.db.Exec(ctx, `
		insert into charging_stations (id, tenant_id, location_id, is_online, vendor, model)
		values ($1,$2,$3,$4,$5,$6)
		on conflict (id) do update set
		  location_id=excluded.location_id,
		  is_online=excluded.is_online,
		  vendor=excluded.vendor,
		  model=excluded.model,
		  updated_at=now()
	`, c.ID, c.TenantID, c.LocationID, c.IsOnline, c.Vendor, c.Model)
	return err
}

func (r *ChargersRepo) Get(ctx context.Context, tenantID int, id string) (*models.ChargingStation, error) {
	row := r.db.QueryRow(ctx, `
		select id, tenant_id, coalesce(location_id,0), is_online, vendor, model, updated_at
		from charging_stations where tenant_id=$1 and id=$2
	`, tenantID, id)

	var c models.ChargingStation
	if err := row.Scan(&c.ID, &c.TenantID, &c.LocationID, &c.IsOnline, &c.Vendor, &c.Model, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *ChargersRepo) SetOnline(ctx context.Context, id string, online bool) error {
	_, err := r.db.Exec(ctx, `update charging_stations set is_online=$2, updated_at=now() where id=$1`, id, online)
	return err
}
