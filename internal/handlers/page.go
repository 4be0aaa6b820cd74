package handlers

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	log "github.com/sirupsen/logrus"

	"spamcheck-backend/internal/middleware"
	"spamcheck-backend/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type pageData struct {
	Text string
	View models.View
	// Result is the controller's fragment, already escaped by html/template.
	Result template.HTML
}

type PageHandler struct {
	sessions Sessions
}

func NewPageHandler(sessions Sessions) *PageHandler {
	return &PageHandler{sessions: sessions}
}

// Show renders the form in the session's current state.
func (h *PageHandler) Show(w http.ResponseWriter, r *http.Request) {
	ctrl := h.sessions.Get(middleware.GetSessionID(r.Context()))
	h.render(w, http.StatusOK, "", ctrl.View())
}

// Submit handles the plain form post and re-renders the page with the result.
func (h *PageHandler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	text := r.PostFormValue("text")
	ctrl := h.sessions.Get(middleware.GetSessionID(r.Context()))
	h.render(w, http.StatusOK, text, ctrl.Submit(r.Context(), text))
}

func (h *PageHandler) render(w http.ResponseWriter, status int, text string, view models.View) {
	var buf bytes.Buffer
	data := pageData{Text: text, View: view, Result: template.HTML(view.HTML)}
	if err := pageTemplate.Execute(&buf, data); err != nil {
		log.WithError(err).Error("failed to render page")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
