package devserver

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mycelian/mycelian-desk/client"
)

// ErrorResponse is the body of every 4xx/5xx reply. The client reads
// message and errors.
type ErrorResponse struct {
	Error   string              `json:"error"`
	Code    int                 `json:"code"`
	Message string              `json:"message,omitempty"`
	Errors  []client.FieldError `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Code:    statusCode,
		Message: message,
	})
}

func writeValidation(w http.ResponseWriter, errs []client.FieldError) {
	writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Error:   http.StatusText(http.StatusUnprocessableEntity),
		Code:    http.StatusUnprocessableEntity,
		Message: "Validation failed",
		Errors:  errs,
	})
}

// decodeJSON reads the request body into v and writes a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return false
	}
	return true
}
