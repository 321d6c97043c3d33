package repo

import (
	"context"
	"encoding/json"
	"errors"

	"ocpi/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PartnersRepo stores the roaming partners registered per tenant.
type PartnersRepo struct{ db *pgxpool.Pool }

func NewPartnersRepo(db *pgxpool.Pool) *PartnersRepo { return &PartnersRepo{db: db} }

const partnerQuery = `
	select p.id, p.tenant_id, p.country_code, p.party_id, p.token_hash, p.outbound_token, p.endpoints,
	       t.id, t.country_code, t.party_id
	from tenant_partners p join tenants t on t.id = p.tenant_id`

func scanPartner(row pgx.Row) (*models.TenantPartner, error) {
	var p models.TenantPartner
	var t models.Tenant
	var endpoints []byte
	if err := row.Scan(&p.ID, &p.TenantID, &p.CountryCode, &p.PartyID, &p.TokenHash, &p.OutboundToken, &endpoints, &t.ID, &t.CountryCode, &t.PartyID); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(endpoints, &p.Endpoints); err != nil {
		return nil, err
	}
	p.Tenant = &t
	return &p, nil
}

func (r *PartnersRepo) CreateTenant(ctx context.Context, t models.Tenant) (int, error) {
	row := r.db.QueryRow(ctx, `
		insert into tenants (country_code, party_id) values ($1,$2)
		on conflict (country_code, party_id) do update set party_id=excluded.party_id
		returning id
	`, t.CountryCode, t.PartyID)
	var id int
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *PartnersRepo) Upsert(ctx context.Context, p models.TenantPartner) (int, error) {
	endpoints, err := json.Marshal(p.Endpoints)
	if err != nil {
		return 0, err
	}
	row := r.db.QueryRow(ctx, `
		insert into tenant_partners (tenant_id, country_code, party_id, token_hash, outbound_token, endpoints)
		values ($1,$2,$3,$4,$5,$6)
		on conflict (tenant_id, country_code, party_id) do update set
		  token_hash=excluded.token_hash,
		  outbound_token=excluded.outbound_token,
		  endpoints=excluded.endpoints
		returning id
	`, p.TenantID, p.CountryCode, p.PartyID, p.TokenHash, p.OutboundToken, endpoints)
	var id int
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *PartnersRepo) Get(ctx context.Context, id int) (*models.TenantPartner, error) {
	p, err := scanPartner(r.db.QueryRow(ctx, partnerQuery+` where p.id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// GetByParty finds a partner by its roaming identity. Party identities are
// unique per tenant; the oldest registration wins if several tenants know it.
func (r *PartnersRepo) GetByParty(ctx context.Context, countryCode, partyID string) (*models.TenantPartner, error) {
	p, err := scanPartner(r.db.QueryRow(ctx, partnerQuery+` where p.country_code=$1 and p.party_id=$2 order by p.id limit 1`, countryCode, partyID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *PartnersRepo) ListByTenant(ctx context.Context, tenantID int) ([]models.TenantPartner, error) {
	rows, err := r.db.Query(ctx, partnerQuery+` where p.tenant_id=$1 order by p.id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TenantPartner
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
