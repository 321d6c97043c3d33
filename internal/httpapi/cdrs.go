package httpapi

import (
	"net/http"
	"time"

	"ocpi/internal/logging"
	"ocpi/internal/models"

	"github.com/go-chi/chi/v5"
)

type cdrView struct {
	ID                     string    `json:"id"`
	SessionID              string    `json:"session_id"`
	StartDateTime          time.Time `json:"start_date_time"`
	EndDateTime            time.Time `json:"end_date_time"`
	AuthorizationReference *string   `json:"authorization_reference,omitempty"`
	Currency               string    `json:"currency"`
	TotalCost              float64   `json:"total_cost"`
	TotalEnergy            float64   `json:"total_energy"`
	TotalTime              float64   `json:"total_time"`
	TotalParkingTime       float64   `json:"total_parking_time"`
	LastUpdated            time.Time `json:"last_updated"`
}

func toCdrView(c *models.CDR) cdrView {
	return cdrView{
		ID:                     c.ID,
		SessionID:              c.TransactionID,
		StartDateTime:          c.StartTime,
		EndDateTime:            c.EndTime,
		AuthorizationReference: c.AuthorizationReference,
		Currency:               c.Currency,
		TotalCost:              c.TotalCost,
		TotalEnergy:            c.TotalEnergy,
		TotalTime:              c.TotalTime.Hours(),
		TotalParkingTime:       c.TotalParkingTime.Hours(),
		LastUpdated:            c.CreatedAt,
	}
}

func (s *Server) GetCdr(w http.ResponseWriter, r *http.Request) {
	partner, _ := PartnerFrom(r.Context())
	id := chi.URLParam(r, "cdr_id")

	cdr, err := s.Cdrs.Get(r.Context(), partner.TenantID, id)
	if err != nil {
		s.Log.ErrorContext(r.Context(), "load cdr", "cdr_id", id, logging.Error(err))
		writeError(w, http.StatusInternalServerError, StatusServerError, "db error")
		return
	}
	if cdr == nil {
		writeError(w, http.StatusNotFound, StatusClientError, "unknown cdr")
		return
	}
	writeData(w, toCdrView(cdr))
}
