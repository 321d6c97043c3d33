package httpapi

import (
	"net/http"
	"strings"

	"ocpi/internal/logging"
	"ocpi/internal/models"

	"github.com/go-chi/chi/v5"
)

// PostCommand hands a partner command to the validation pipeline. The
// command result arrives later at the partner's response_url.
func (s *Server) PostCommand(w http.ResponseWriter, r *http.Request) {
	partner, _ := PartnerFrom(r.Context())
	command := models.CommandType(strings.ToUpper(chi.URLParam(r, "command")))

	raw, err := readAll(r, maxBodySize)
	if err != nil {
		s.Log.WarnContext(r.Context(), "read command body", logging.Command(string(command)), logging.Error(err))
		resp := models.CommandResponse{
			Result:  models.CommandRejected,
			Message: []models.DisplayText{{Language: "en", Text: "unreadable command payload"}},
		}
		writeEnvelope(w, http.StatusBadRequest, StatusInvalidParameters, "bad body", resp)
		return
	}
	resp := s.Commands.Handle(r.Context(), partner, command, raw)
	s.Log.InfoContext(r.Context(), "command handled",
		logging.Command(string(command)),
		logging.Partner(partner.CountryCode, partner.PartyID),
		"result", resp.Result)
	writeData(w, resp)
}
