package httpapi

import (
	"context"
	"net/http"

	"ocpi/internal/logging"
	"ocpi/internal/models"
	"ocpi/internal/security"
)

type ctxKey int

const partnerKey ctxKey = iota

// Headers naming the calling party.
const (
	HeaderFromCountryCode = "OCPI-from-country-code"
	HeaderFromPartyID     = "OCPI-from-party-id"
)

// RequirePartner authenticates the calling party by its credential token and
// puts it in the request context.
func (s *Server) RequirePartner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tok, ok := security.CredentialToken(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, http.StatusUnauthorized, StatusClientError, "missing credentials token")
			return
		}
		cc, pid := r.Header.Get(HeaderFromCountryCode), r.Header.Get(HeaderFromPartyID)
		if cc == "" || pid == "" {
			writeError(w, http.StatusBadRequest, StatusInvalidParameters, "missing OCPI-from headers")
			return
		}

		partner, err := s.Partners.GetByParty(ctx, cc, pid)
		if err != nil {
			s.Log.ErrorContext(ctx, "load partner", logging.Partner(cc, pid), logging.Error(err))
			writeError(w, http.StatusInternalServerError, StatusServerError, "db error")
			return
		}
		if partner == nil || partner.TokenHash == "" || !security.MatchesHash(tok, partner.TokenHash) {
			s.Log.WarnContext(ctx, "partner authentication failed", logging.Partner(cc, pid))
			writeError(w, http.StatusUnauthorized, StatusClientError, "invalid credentials token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, partnerKey, partner)))
	})
}

// PartnerFrom returns the authenticated partner of the request.
func PartnerFrom(ctx context.Context) (*models.TenantPartner, bool) {
	p, ok := ctx.Value(partnerKey).(*models.TenantPartner)
	return p, ok
}
