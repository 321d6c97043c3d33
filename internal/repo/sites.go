package repo

import (
	"context"
	"errors"

	"ocpi/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SitesRepo holds locations and the EVSEs installed at them.
type SitesRepo struct{ db *pgxpool.Pool }

func NewSitesRepo(db *pgxpool.Pool) *SitesRepo { return &SitesRepo{db: db} }

func (r *SitesRepo) CreateLocation(ctx context.Context, l models.Location) (int, error) {
	row := r.db.QueryRow(ctx, `
		insert into locations (tenant_id, name, address, city, postal_code, country, latitude, longitude, time_zone)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		returning id
	`, l.TenantID, l.Name, l.Address, l.City, l.PostalCode, l.Country, l.Latitude, l.Longitude, l.TimeZone)
	var id int
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *SitesRepo) GetLocation(ctx context.Context, tenantID, id int) (*models.Location, error) {
	row := r.db.QueryRow(ctx, `
		select id, tenant_id, name, address, city, postal_code, country, latitude, longitude, time_zone, updated_at
		from locations where tenant_id=$1 and id=$2
	`, tenantID, id)
	var l models.Location
	if err := row.Scan(&l.ID, &l.TenantID, &l.Name, &l.Address, &l.City, &l.PostalCode, &l.Country, &l.Latitude, &l.Longitude, &l.TimeZone, &l.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

func (r *SitesRepo) CreateEvse(ctx context.Context, e models.Evse) (int, error) {
	row := r.db.QueryRow(ctx, `
		insert into evses (tenant_id, station_id, evse_uid, station_evse_id, physical_reference)
		values ($1,$2,$3,$4,$5)
		on conflict (evse_uid) do update set station_evse_id=excluded.station_evse_id, updated_at=now()
		returning id
	`, e.TenantID, e.StationID, e.EvseUID, e.StationEvseID, e.PhysicalReference)
	var id int
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

const evseColumns = `id, tenant_id, station_id, evse_uid, station_evse_id, physical_reference, updated_at`

func scanEvse(row pgx.Row) (*models.Evse, error) {
	var e models.Evse
	if err := row.Scan(&e.ID, &e.TenantID, &e.StationID, &e.EvseUID, &e.StationEvseID, &e.PhysicalReference, &e.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (r *SitesRepo) GetEvse(ctx context.Context, tenantID, id int) (*models.Evse, error) {
	return scanEvse(r.db.QueryRow(ctx, `select `+evseColumns+` from evses where tenant_id=$1 and id=$2`, tenantID, id))
}

func (r *SitesRepo) GetEvseByUID(ctx context.Context, tenantID int, uid string) (*models.Evse, error) {
	return scanEvse(r.db.QueryRow(ctx, `select `+evseColumns+` from evses where tenant_id=$1 and evse_uid=$2`, tenantID, uid))
}

func (r *SitesRepo) ListEvsesByStation(ctx context.Context, tenantID int, stationID string) ([]models.Evse, error) {
	rows, err := r.db.Query(ctx, `select `+evseColumns+` from evses where tenant_id=$1 and station_id=$2 order by station_evse_id`, tenantID, stationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Evse
	for rows.Next() {
		e, err := scanEvse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}
