package repo

import (
	"context"
	"errors"

	"ocpi/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type StateRepo struct{ db *pgxpool.Pool }

func NewStateRepo(db *pgxpool.Pool) *StateRepo { return &StateRepo{db: db} }

const connectorColumns = `id, tenant_id, station_id, evse_id, connector_uid, station_connector_id, status, type, format, power_type, max_voltage, max_amperage, updated_at`

func scanConnector(row pgx.Row) (*models.Connector, error) {
	var c models.Connector
	if err := row.Scan(&c.ID, &c.TenantID, &c.StationID, &c.EvseID, &c.ConnectorUID, &c.StationConnectorID, &c.Status, &c.Type, &c.Format, &c.PowerType, &c.MaxVoltage, &c.MaxAmperage, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *StateRepo) UpsertConnector(ctx context.Context, c models.Connector) (int, error) {
	row := r.db.QueryRow(ctx, `
		insert into connectors (tenant_id, station_id, evse_id, connector_uid, station_connector_id, status, type, format, power_type, max_voltage, max_amperage)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		on conflict (evse_id, connector_uid) do update set
		  station_connector_id=excluded.station_connector_id,
		  status=excluded.status,
		  updated_at=now()
		returning id
	`, c.TenantID, c.StationID, c.EvseID, c.ConnectorUID, c.StationConnectorID, c.Status, c.Type, c.Format, c.PowerType, c.MaxVoltage, c.MaxAmperage)
	var id int
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *StateRepo) GetConnector(ctx context.Context, tenantID, id int) (*models.Connector, error) {
	c, err := scanConnector(r.db.QueryRow(ctx, `select `+connectorColumns+` from connectors where tenant_id=$1 and id=$2`, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// FindConnector resolves an external connector identifier within an EVSE.
func (r *StateRepo) FindConnector(ctx context.Context, evseID int, connectorUID string) (*models.Connector, error) {
	c, err := scanConnector(r.db.QueryRow(ctx, `select `+connectorColumns+` from connectors where evse_id=$1 and connector_uid=$2`, evseID, connectorUID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (r *StateRepo) ListConnectors(ctx context.Context, tenantID, evseID int) ([]models.Connector, error) {
	rows, err := r.db.Query(ctx, `
		select `+connectorColumns+`
		from connectors where tenant_id=$1 and evse_id=$2
		order by station_connector_id asc
	`, tenantID, evseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Connector
	for rows.Next() {
		c, err := scanConnector(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *StateRepo) SetStatus(ctx context.Context, id int, status string) error {
	_, err := r.db.Exec(ctx, `update connectors set status=$2, updated_at=now() where id=$1`, id, status)
	return err
}
