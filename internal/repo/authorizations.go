package repo

import (
	"context"
	"encoding/json"
	"errors"

	"ocpi/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AuthorizationsRepo struct{ db *pgxpool.Pool }

func NewAuthorizationsRepo(db *pgxpool.Pool) *AuthorizationsRepo {
	return &AuthorizationsRepo{db: db}
}

const authorizationColumns = `id, id_token, id_token_type, status, additional_info, whitelist, language, group_id, group_authorization_id, partner_id, external_token, updated_at`

func scanAuthorization(row pgx.Row) (*models.Authorization, error) {
	var a models.Authorization
	var info, external []byte
	if err := row.Scan(&a.ID, &a.IDToken, &a.IDTokenType, &a.Status, &info, &a.Whitelist, &a.Language, &a.GroupID, &a.GroupAuthorizationID, &a.PartnerID, &external, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(info) > 0 {
		if err := json.Unmarshal(info, &a.AdditionalInfo); err != nil {
			return nil, err
		}
	}
	if len(external) > 0 {
		a.ExternalToken = &models.ExternalToken{}
		if err := json.Unmarshal(external, a.ExternalToken); err != nil {
			return nil, err
		}
	}
	return &a, nil
}

func (r *AuthorizationsRepo) Get(ctx context.Context, idToken string, idTokenType models.IDTokenType) (*models.Authorization, error) {
	return scanAuthorization(r.db.QueryRow(ctx, `
		select `+authorizationColumns+` from authorizations where id_token=$1 and id_token_type=$2
	`, idToken, idTokenType))
}

// GetByIDToken ignores the token type; transactions only carry the raw id token.
func (r *AuthorizationsRepo) GetByIDToken(ctx context.Context, idToken string) (*models.Authorization, error) {
	return scanAuthorization(r.db.QueryRow(ctx, `
		select `+authorizationColumns+` from authorizations where id_token=$1
		order by (external_token is null), updated_at desc limit 1
	`, idToken))
}

// GetGroup loads the placeholder of a partner token group by its id token.
// Member tokens carry the same group_id and partner, so the key is required.
func (r *AuthorizationsRepo) GetGroup(ctx context.Context, groupKey, groupID string, partnerID int) (*models.Authorization, error) {
	return scanAuthorization(r.db.QueryRow(ctx, `
		select `+authorizationColumns+` from authorizations
		where id_token=$1 and id_token_type=$2 and group_id=$3 and partner_id=$4
	`, groupKey, models.IDTokenCentral, groupID, partnerID))
}

// Save inserts or updates the authorization keyed by (id_token, id_token_type).
func (r *AuthorizationsRepo) Save(ctx context.Context, a *models.Authorization) error {
	info, err := json.Marshal(a.AdditionalInfo)
	if err != nil {
		return err
	}
	var external []byte
	if a.ExternalToken != nil {
		if external, err = json.Marshal(a.ExternalToken); err != nil {
			return err
		}
	}
	row := r.db.QueryRow(ctx, `
		insert into authorizations (id_token, id_token_type, status, additional_info, whitelist, language, group_id, group_authorization_id, partner_id, external_token)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		on conflict (id_token, id_token_type) do update set
		  status=excluded.status,
		  additional_info=excluded.additional_info,
		  whitelist=excluded.whitelist,
		  language=excluded.language,
		  group_id=excluded.group_id,
		  group_authorization_id=excluded.group_authorization_id,
		  partner_id=excluded.partner_id,
		  external_token=excluded.external_token,
		  updated_at=now()
		returning id, updated_at
	`, a.IDToken, a.IDTokenType, a.Status, info, a.Whitelist, a.Language, a.GroupID, a.GroupAuthorizationID, a.PartnerID, external)
	return row.Scan(&a.ID, &a.UpdatedAt)
}

// Create inserts without upsert semantics; a concurrent insert of the same
// key yields ErrDuplicate.
func (r *AuthorizationsRepo) Create(ctx context.Context, a *models.Authorization) error {
	info, err := json.Marshal(a.AdditionalInfo)
	if err != nil {
		return err
	}
	row := r.db.QueryRow(ctx, `
		insert into authorizations (id_token, id_token_type, status, additional_info, whitelist, language, group_id, partner_id)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
		returning id, updated_at
	`, a.IDToken, a.IDTokenType, a.Status, info, a.Whitelist, a.Language, a.GroupID, a.PartnerID)
	return mapError(row.Scan(&a.ID, &a.UpdatedAt))
}
