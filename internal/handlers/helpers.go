package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"spamcheck-backend/internal/models"
	"spamcheck-backend/internal/services"
)

// maxBodyBytes bounds request bodies on every JSON and form route.
const maxBodyBytes = 1 << 20

// Shared helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			Fields:    fields,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

// handleServiceError maps upstream failures to 502 and anything else to 500.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		transport  *services.TransportError
		unexpected *services.UnexpectedResponseError
	)
	entry := log.WithError(err).WithField("request_id", r.Header.Get("X-Request-ID"))

	switch {
	case errors.As(err, &transport), errors.As(err, &unexpected):
		entry.Warn("upstream call failed")
		writeJSON(w, http.StatusBadGateway, errorResp("UPSTREAM_ERROR", "The prediction service is unavailable", r))
	default:
		entry.Error("request failed")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}

func decodeSubmission(w http.ResponseWriter, r *http.Request) (models.Submission, bool) {
	var req models.Submission
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Invalid request body",
				map[string]string{typeErr.Field: "must be a " + typeErr.Type.String()}, r))
			return req, false
		}
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return req, false
	}
	return req, true
}
