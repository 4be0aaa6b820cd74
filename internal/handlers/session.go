package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"spamcheck-backend/internal/models"
)

type TokenIssuer interface {
	Issue(sessionID uuid.UUID) (string, time.Time, error)
}

type SessionHandler struct {
	tokens TokenIssuer
}

func NewSessionHandler(tokens TokenIssuer) *SessionHandler {
	return &SessionHandler{tokens: tokens}
}

// Create starts a new session for API clients.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	sessionID := uuid.New()
	token, expiresAt, err := h.tokens.Issue(sessionID)
	if err != nil {
		log.WithError(err).Error("failed to issue session token")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Could not create session", r))
		return
	}

	writeJSON(w, http.StatusCreated, models.SessionResponse{
		SessionID: sessionID,
		Token:     token,
		ExpiresAt: expiresAt,
	})
}
