package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"spamcheck-backend/internal/controller"
	"spamcheck-backend/internal/middleware"
	"spamcheck-backend/internal/models"
	"spamcheck-backend/internal/services"
)

// Sessions hands out the controller that belongs to a session.
type Sessions interface {
	Get(sessionID uuid.UUID) *controller.Controller
}

// Enqueuer schedules a begun submission for a background worker.
type Enqueuer interface {
	Enqueue(ctx context.Context, sessionID uuid.UUID, sequence int64) error
}

type CheckHandler struct {
	sessions Sessions
	queue    Enqueuer
}

func NewCheckHandler(sessions Sessions, queue Enqueuer) *CheckHandler {
	return &CheckHandler{sessions: sessions, queue: queue}
}

// Submit runs a whole cycle and responds with the terminal view.
func (h *CheckHandler) Submit(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSubmission(w, r)
	if !ok {
		return
	}

	ctrl := h.sessions.Get(middleware.GetSessionID(r.Context()))
	writeJSON(w, http.StatusOK, ctrl.Submit(r.Context(), req.Text))
}

// SubmitAsync moves the controller to loading and leaves the request to the
// worker pool. Updates arrive over the WebSocket or by polling View.
func (h *CheckHandler) SubmitAsync(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSubmission(w, r)
	if !ok {
		return
	}

	sessionID := middleware.GetSessionID(r.Context())
	ctrl := h.sessions.Get(sessionID)

	// The request context ends with this handler; the cycle must outlive it.
	ticket, view, err := ctrl.Begin(context.Background(), req.Text)
	var verr *controller.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusOK, view)
		return
	}

	if err := h.queue.Enqueue(r.Context(), sessionID, ticket.Sequence); err != nil {
		log.WithError(err).WithField("session_id", sessionID).Error("failed to enqueue submission")
		ctrl.Complete(ticket, models.PredictionResult{}, &services.TransportError{Err: err})
		writeJSON(w, http.StatusServiceUnavailable, errorResp("QUEUE_UNAVAILABLE", "Could not schedule the analysis", r))
		return
	}

	writeJSON(w, http.StatusAccepted, view)
}

func (h *CheckHandler) View(w http.ResponseWriter, r *http.Request) {
	ctrl := h.sessions.Get(middleware.GetSessionID(r.Context()))
	writeJSON(w, http.StatusOK, ctrl.View())
}

func (h *CheckHandler) Counter(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSubmission(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, controller.CharCount(req.Text))
}
