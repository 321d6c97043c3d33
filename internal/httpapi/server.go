package httpapi

import (
	"context"
	"net/http"

	"ocpi/internal/logging"
	"ocpi/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const basePath = "/ocpi/2.2.1"

type PartnerStore interface {
	GetByParty(ctx context.Context, countryCode, partyID string) (*models.TenantPartner, error)
}

type CommandHandler interface {
	Handle(ctx context.Context, partner *models.TenantPartner, command models.CommandType, body []byte) models.CommandResponse
}

type TokenService interface {
	Upsert(ctx context.Context, partner *models.TenantPartner, token models.Token) (*models.Authorization, error)
	Patch(ctx context.Context, partner *models.TenantPartner, uid string, tokenType models.TokenType, p models.TokenPatch) (*models.Authorization, error)
	Get(ctx context.Context, partner *models.TenantPartner, uid string, tokenType models.TokenType) (*models.Token, error)
}

type CdrStore interface {
	Get(ctx context.Context, tenantID int, id string) (*models.CDR, error)
}

type Server struct {
	Partners PartnerStore
	Commands CommandHandler
	Tokens   TokenService
	Cdrs     CdrStore
	Log      *logging.Logger
}

func NewServer(partners PartnerStore, commands CommandHandler, tokens TokenService, cdrs CdrStore, log *logging.Logger) *Server {
	return &Server{Partners: partners, Commands: commands, Tokens: tokens, Cdrs: cdrs, Log: log}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route(basePath, func(r chi.Router) {
		r.Use(s.RequirePartner)

		r.Post("/commands/{command}", s.PostCommand)

		r.Route("/tokens/{country_code}/{party_id}/{uid}", func(r chi.Router) {
			r.Get("/", s.GetToken)
			r.Put("/", s.PutToken)
			r.Patch("/", s.PatchToken)
		})

		r.Get("/cdrs/{cdr_id}", s.GetCdr)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Handle("/metrics", promhttp.Handler())
	return r
}
