package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ocpi/internal/logging"
	"ocpi/internal/models"
	"ocpi/internal/repo"
)

var (
	ErrUnknownToken  = errors.New("unknown token")
	ErrPartyMismatch = errors.New("token does not belong to partner")
)

// Additional info types carried next to the id token.
const (
	InfoEMAID        = "eMAID"
	InfoVisualNumber = "VisualNumber"
)

type Store interface {
	Get(ctx context.Context, idToken string, t models.IDTokenType) (*models.Authorization, error)
	GetByIDToken(ctx context.Context, idToken string) (*models.Authorization, error)
	GetGroup(ctx context.Context, groupKey, groupID string, partnerID int) (*models.Authorization, error)
	Save(ctx context.Context, a *models.Authorization) error
	Create(ctx context.Context, a *models.Authorization) error
}

type Service struct {
	store Store
	log   *logging.Logger
}

func NewService(store Store, log *logging.Logger) *Service {
	return &Service{store: store, log: log}
}

// Upsert stores token as the authorization of its normalized uid.
func (s *Service) Upsert(ctx context.Context, partner *models.TenantPartner, token models.Token) (*models.Authorization, error) {
	if token.CountryCode != partner.CountryCode || token.PartyID != partner.PartyID {
		return nil, ErrPartyMismatch
	}
	idType, err := ToIDTokenType(token.Type)
	if err != nil {
		return nil, err
	}
	id := Normalize(token.UID)

	auth, err := s.store.Get(ctx, id, idType)
	if err != nil {
		return nil, fmt.Errorf("load authorization: %w", err)
	}
	if auth == nil {
		auth = &models.Authorization{IDToken: id, IDTokenType: idType}
	} else if auth.PartnerID != nil && *auth.PartnerID != partner.ID {
		return nil, ErrPartyMismatch
	}

	auth.Status = statusFor(token.Valid)
	auth.Whitelist = token.Whitelist
	auth.Language = token.Language
	auth.AdditionalInfo = additionalInfo(token.ContractID, token.VisualNumber)
	auth.PartnerID = &partner.ID
	auth.ExternalToken = externalToken(token)

	if err := s.attachGroup(ctx, partner, auth, token.GroupID); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, auth); err != nil {
		return nil, fmt.Errorf("save authorization: %w", err)
	}
	return auth, nil
}

// Patch applies a partial update to a token the partner pushed earlier.
func (s *Service) Patch(ctx context.Context, partner *models.TenantPartner, uid string, tokenType models.TokenType, p models.TokenPatch) (*models.Authorization, error) {
	auth, err := s.lookup(ctx, partner, uid, tokenType)
	if err != nil {
		return nil, err
	}

	ext := auth.ExternalToken
	if ext == nil {
		ext = &models.ExternalToken{
			UID:         uid,
			Type:        tokenType,
			CountryCode: partner.CountryCode,
			PartyID:     partner.PartyID,
			Whitelist:   auth.Whitelist,
			Language:    auth.Language,
			Valid:       auth.Status == models.AuthorizationAccepted,
		}
	}

	var partial []models.AdditionalInfo
	if p.ContractID != nil {
		ext.ContractID = *p.ContractID
		partial = append(partial, models.AdditionalInfo{AdditionalIDToken: *p.ContractID, Type: InfoEMAID})
	}
	if p.VisualNumber != nil {
		ext.VisualNumber = *p.VisualNumber
		partial = append(partial, models.AdditionalInfo{AdditionalIDToken: *p.VisualNumber, Type: InfoVisualNumber})
	}
	if len(partial) > 0 {
		auth.AdditionalInfo = MergeAdditionalInfo(partial, auth.AdditionalInfo)
	}
	if p.Issuer != nil {
		ext.Issuer = *p.Issuer
	}
	if p.Valid != nil {
		ext.Valid = *p.Valid
		auth.Status = statusFor(*p.Valid)
	}
	if p.Whitelist != nil {
		ext.Whitelist = *p.Whitelist
		auth.Whitelist = *p.Whitelist
	}
	if p.Language != nil {
		ext.Language = *p.Language
		auth.Language = *p.Language
	}
	if p.GroupID != nil {
		if err := s.attachGroup(ctx, partner, auth, *p.GroupID); err != nil {
			return nil, err
		}
	}
	auth.ExternalToken = ext

	if err := s.store.Save(ctx, auth); err != nil {
		return nil, fmt.Errorf("save authorization: %w", err)
	}
	return auth, nil
}

// Get returns the token as the partner knows it.
func (s *Service) Get(ctx context.Context, partner *models.TenantPartner, uid string, tokenType models.TokenType) (*models.Token, error) {
	auth, err := s.lookup(ctx, partner, uid, tokenType)
	if err != nil {
		return nil, err
	}
	t := ToToken(auth, partner)
	return &t, nil
}

// ForIDToken finds the authorization behind a station-side id token.
func (s *Service) ForIDToken(ctx context.Context, idToken string) (*models.Authorization, error) {
	return s.store.GetByIDToken(ctx, idToken)
}

// ResolveGroup returns the placeholder authorization standing for a partner
// token group, creating it on first use.
func (s *Service) ResolveGroup(ctx context.Context, partner *models.TenantPartner, groupID string) (*models.Authorization, error) {
	key := GroupKey(partner.ID, groupID)
	g, err := s.store.GetGroup(ctx, key, groupID, partner.ID)
	if err != nil {
		return nil, fmt.Errorf("load group: %w", err)
	}
	if g != nil {
		return g, nil
	}

	g = &models.Authorization{
		IDToken:     key,
		IDTokenType: models.IDTokenCentral,
		Status:      models.AuthorizationInvalid,
		Whitelist:   models.WhitelistNever,
		GroupID:     &groupID,
		PartnerID:   &partner.ID,
	}
	err = s.store.Create(ctx, g)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, repo.ErrDuplicate) {
		return nil, fmt.Errorf("create group: %w", err)
	}

	s.log.WarnContext(ctx, "group authorization created concurrently",
		"group_id", groupID, logging.Partner(partner.CountryCode, partner.PartyID))
	g, err = s.store.GetGroup(ctx, key, groupID, partner.ID)
	if err != nil {
		return nil, fmt.Errorf("reload group: %w", err)
	}
	if g == nil {
		return nil, fmt.Errorf("group %q vanished after duplicate create", groupID)
	}
	return g, nil
}

// GroupKey is the id token of the placeholder standing for groupID.
func GroupKey(partnerID int, groupID string) string {
	return Normalize(fmt.Sprintf("group:%d:%s", partnerID, groupID))
}

func (s *Service) attachGroup(ctx context.Context, partner *models.TenantPartner, auth *models.Authorization, groupID string) error {
	if groupID == "" {
		auth.GroupID = nil
		auth.GroupAuthorizationID = nil
		return nil
	}
	g, err := s.ResolveGroup(ctx, partner, groupID)
	if err != nil {
		return err
	}
	auth.GroupID = &groupID
	auth.GroupAuthorizationID = &g.ID
	return nil
}

func (s *Service) lookup(ctx context.Context, partner *models.TenantPartner, uid string, tokenType models.TokenType) (*models.Authorization, error) {
	idType, err := ToIDTokenType(tokenType)
	if err != nil {
		return nil, err
	}
	auth, err := s.store.Get(ctx, Normalize(uid), idType)
	if err != nil {
		return nil, fmt.Errorf("load authorization: %w", err)
	}
	if auth == nil {
		return nil, ErrUnknownToken
	}
	if auth.PartnerID != nil && *auth.PartnerID != partner.ID {
		return nil, ErrPartyMismatch
	}
	return auth, nil
}

// ToToken rebuilds the partner-facing token, preferring the stored original.
func ToToken(auth *models.Authorization, partner *models.TenantPartner) models.Token {
	t := models.Token{
		UID:         auth.IDToken,
		Type:        ToTokenType(auth.IDTokenType),
		Valid:       auth.Status == models.AuthorizationAccepted,
		Whitelist:   auth.Whitelist,
		Language:    auth.Language,
		LastUpdated: auth.UpdatedAt,
	}
	if partner != nil {
		t.CountryCode = partner.CountryCode
		t.PartyID = partner.PartyID
	}
	for _, info := range auth.AdditionalInfo {
		switch info.Type {
		case InfoEMAID:
			t.ContractID = info.AdditionalIDToken
		case InfoVisualNumber:
			t.VisualNumber = info.AdditionalIDToken
		}
	}
	if auth.GroupID != nil {
		t.GroupID = *auth.GroupID
	}
	if ext := auth.ExternalToken; ext != nil {
		t.UID = ext.UID
		t.Type = ext.Type
		t.CountryCode = ext.CountryCode
		t.PartyID = ext.PartyID
		t.Issuer = ext.Issuer
		if ext.ContractID != "" {
			t.ContractID = ext.ContractID
		}
		if ext.VisualNumber != "" {
			t.VisualNumber = ext.VisualNumber
		}
	}
	if t.LastUpdated.IsZero() {
		t.LastUpdated = time.Now().UTC()
	}
	return t
}

func statusFor(valid bool) string {
	if valid {
		return models.AuthorizationAccepted
	}
	return models.AuthorizationInvalid
}

func additionalInfo(contractID, visualNumber string) []models.AdditionalInfo {
	var out []models.AdditionalInfo
	if contractID != "" {
		out = append(out, models.AdditionalInfo{AdditionalIDToken: contractID, Type: InfoEMAID})
	}
	if visualNumber != "" {
		out = append(out, models.AdditionalInfo{AdditionalIDToken: visualNumber, Type: InfoVisualNumber})
	}
	return out
}

func externalToken(t models.Token) *models.ExternalToken {
	return &models.ExternalToken{
		UID:          t.UID,
		Type:         t.Type,
		CountryCode:  t.CountryCode,
		PartyID:      t.PartyID,
		ContractID:   t.ContractID,
		VisualNumber: t.VisualNumber,
		Issuer:       t.Issuer,
		Language:     t.Language,
		Valid:        t.Valid,
		Whitelist:    t.Whitelist,
	}
}
