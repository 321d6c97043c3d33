package repo

import (
	"context"
	"errors"

	"ocpi/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TariffsRepo struct{ db *pgxpool.Pool }

func NewTariffsRepo(db *pgxpool.Pool) *TariffsRepo { return &TariffsRepo{db: db} }

func (r *TariffsRepo) Create(ctx context.Context, t models.Tariff) (int, error) {
	row := r.db.QueryRow(ctx, `
		insert into tariffs (tenant_id, currency, price_per_kwh, price_per_minute)
		values ($1,$2,$3,$4)
		returning id
	`, t.TenantID, t.Currency, t.PricePerKwh, t.PricePerMinute)
	var id int
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *TariffsRepo) Get(ctx context.Context, id int) (*models.Tariff, error) {
	row := r.db.QueryRow(ctx, `
		select id, tenant_id, currency, price_per_kwh::float8, price_per_minute::float8, updated_at
		from tariffs where id=$1
	`, id)
	var t models.Tariff
	if err := row.Scan(&t.ID, &t.TenantID, &t.Currency, &t.PricePerKwh, &t.PricePerMinute, &t.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *TariffsRepo) UpsertBillingConfig(ctx context.Context, b models.BillingConfig) error {
	_, err := r.db.Exec(ctx, `
		insert into billing_configs (location_id, charge_method, price_per_kwh, price_per_minute, flat_rate, idle_rate_per_minute, currency)
		values ($1,$2,$3,$4,$5,$6,$7)
		on conflict (location_id) do update set
		  charge_method=excluded.charge_method,
		  price_per_kwh=excluded.price_per_kwh,
		  price_per_minute=excluded.price_per_minute,
		  flat_rate=excluded.flat_rate,
		  idle_rate_per_minute=excluded.idle_rate_per_minute,
		  currency=excluded.currency
	`, b.LocationID, b.ChargeMethod, b.PricePerKwh, b.PricePerMinute, b.FlatRate, b.IdleRatePerMinute, b.Currency)
	return err
}

func (r *TariffsRepo) GetBillingConfig(ctx context.Context, locationID int) (*models.BillingConfig, error) {
	row := r.db.QueryRow(ctx, `
		select location_id, charge_method, price_per_kwh::float8, price_per_minute::float8, flat_rate::float8, idle_rate_per_minute::float8, currency
		from billing_configs where location_id=$1
	`, locationID)
	var b models.BillingConfig
	if err := row.Scan(&b.LocationID, &b.ChargeMethod, &b.PricePerKwh, &b.PricePerMinute, &b.FlatRate, &b.IdleRatePerMinute, &b.Currency); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}
