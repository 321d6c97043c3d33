package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"ocpi/internal/partnerclient"
)

// Envelope status codes.
const (
	StatusSuccess           = 1000
	StatusClientError       = 2000
	StatusInvalidParameters = 2001
	StatusUnknownToken      = 2004
	StatusServerError       = 3000
)

const maxBodySize = 1 << 20

func readAll(r *http.Request, limit int64) ([]byte, error) {
	body := http.MaxBytesReader(nil, r.Body, limit)
	defer body.Close()
	return io.ReadAll(body)
}

func writeEnvelope(w http.ResponseWriter, httpStatus, code int, message string, data any) {
	env := partnerclient.Envelope{
		StatusCode:    code,
		StatusMessage: message,
		Timestamp:     time.Now().UTC(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			httpStatus, env.StatusCode, env.StatusMessage = http.StatusInternalServerError, StatusServerError, "encode response"
		} else {
			env.Data = raw
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(env)
}

func writeData(w http.ResponseWriter, data any) {
	writeEnvelope(w, http.StatusOK, StatusSuccess, "Success", data)
}

func writeError(w http.ResponseWriter, httpStatus, code int, message string) {
	writeEnvelope(w, httpStatus, code, message, nil)
}
