package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"ocpi/internal/logging"
	"ocpi/internal/models"
	"ocpi/internal/tokens"

	"github.com/go-chi/chi/v5"
)

type tokenPath struct {
	countryCode string
	partyID     string
	uid         string
	tokenType   models.TokenType
}

func parseTokenPath(r *http.Request) tokenPath {
	p := tokenPath{
		countryCode: chi.URLParam(r, "country_code"),
		partyID:     chi.URLParam(r, "party_id"),
		uid:         chi.URLParam(r, "uid"),
		tokenType:   models.TokenType(r.URL.Query().Get("type")),
	}
	if p.tokenType == "" {
		p.tokenType = models.TokenRFID
	}
	return p
}

// ownedBy reports whether the path addresses the calling partner's tokens.
func (p tokenPath) ownedBy(partner *models.TenantPartner) bool {
	return p.countryCode == partner.CountryCode && p.partyID == partner.PartyID
}

func (s *Server) GetToken(w http.ResponseWriter, r *http.Request) {
	partner, _ := PartnerFrom(r.Context())
	p := parseTokenPath(r)
	if !p.ownedBy(partner) {
		writeError(w, http.StatusForbidden, StatusClientError, "token path does not match requesting party")
		return
	}
	t, err := s.Tokens.Get(r.Context(), partner, p.uid, p.tokenType)
	if err != nil {
		s.tokenError(w, r, err)
		return
	}
	writeData(w, t)
}

func (s *Server) PutToken(w http.ResponseWriter, r *http.Request) {
	partner, _ := PartnerFrom(r.Context())
	p := parseTokenPath(r)
	if !p.ownedBy(partner) {
		writeError(w, http.StatusForbidden, StatusClientError, "token path does not match requesting party")
		return
	}

	var t models.Token
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, StatusInvalidParameters, "invalid token json")
		return
	}
	if t.UID != p.uid || t.CountryCode != p.countryCode || t.PartyID != p.partyID || t.Type != p.tokenType {
		writeError(w, http.StatusBadRequest, StatusInvalidParameters, "token body does not match path")
		return
	}
	if _, err := s.Tokens.Upsert(r.Context(), partner, t); err != nil {
		s.tokenError(w, r, err)
		return
	}
	writeData(w, nil)
}

func (s *Server) PatchToken(w http.ResponseWriter, r *http.Request) {
	partner, _ := PartnerFrom(r.Context())
	p := parseTokenPath(r)
	if !p.ownedBy(partner) {
		writeError(w, http.StatusForbidden, StatusClientError, "token path does not match requesting party")
		return
	}

	var patch models.TokenPatch
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, StatusInvalidParameters, "invalid token patch json")
		return
	}
	if _, err := s.Tokens.Patch(r.Context(), partner, p.uid, p.tokenType, patch); err != nil {
		s.tokenError(w, r, err)
		return
	}
	writeData(w, nil)
}

func (s *Server) tokenError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tokens.ErrUnknownToken):
		writeError(w, http.StatusNotFound, StatusUnknownToken, "unknown token")
	case errors.Is(err, tokens.ErrUnknownTokenType):
		writeError(w, http.StatusBadRequest, StatusInvalidParameters, err.Error())
	case errors.Is(err, tokens.ErrPartyMismatch):
		writeError(w, http.StatusForbidden, StatusClientError, err.Error())
	default:
		s.Log.ErrorContext(r.Context(), "token request failed", logging.Error(err))
		writeError(w, http.StatusInternalServerError, StatusServerError, "internal error")
	}
}
