package controller

import (
	"bytes"
	"html/template"

	log "github.com/sirupsen/logrus"

	"spamcheck-backend/internal/models"
)

const (
	IconSpam       = "fas fa-exclamation-triangle"
	IconNotSpam    = "fas fa-check-circle"
	IconValidation = "fas fa-exclamation-circle"
	IconError      = "fas fa-times-circle"
	IconUnexpected = "fas fa-question-circle"

	ClassSpam    = "result-spam"
	ClassNotSpam = "result-not-spam"
	ClassError   = "result-error"
)

var fragmentTemplate = template.Must(template.New("result").Parse(
	`<div class="result-content {{.Class}}">` +
		`<div class="result-icon"><i class="{{.Icon}}"></i></div>` +
		`<div><strong>{{.Title}}</strong><br><small>{{.Message}}</small></div>` +
		`</div>`))

type fragment struct {
	Class string
	Icon  string
	Title string
	// Message is escaped by the template, so server strings show verbatim.
	Message string
}

// Renderer builds terminal views and their HTML fragments.
type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() *Renderer {
	return &Renderer{tmpl: fragmentTemplate}
}

func (r *Renderer) Success(seq int64, label models.Label, counter models.CharCounter) models.View {
	v := terminalView(seq, counter)
	v.State = models.StateSuccess
	v.Label = label

	if label == models.LabelSpam {
		v.Icon, v.ResultClass, v.Message = IconSpam, ClassSpam, MessageSpam
	} else {
		v.Icon, v.ResultClass, v.Message = IconNotSpam, ClassNotSpam, MessageNotSpam
	}
	v.Title = v.Message

	v.HTML = r.render(fragment{
		Class:   v.ResultClass,
		Icon:    v.Icon,
		Title:   v.Title,
		Message: "AI analysis complete",
	})
	return v
}

// Failure renders any of the error kinds. message is shown verbatim, as text.
func (r *Renderer) Failure(seq int64, kind models.FailureKind, message string, counter models.CharCounter) models.View {
	v := terminalView(seq, counter)
	v.State = models.StateFailure
	v.Failure = kind
	v.Title = "Error"
	v.Message = message
	v.ResultClass = ClassError

	switch kind {
	case models.FailureValidation:
		v.Icon = IconValidation
	case models.FailureUnexpected:
		v.Icon = IconUnexpected
	default:
		v.Icon = IconError
	}

	v.HTML = r.render(fragment{
		Class:   v.ResultClass,
		Icon:    v.Icon,
		Title:   v.Title,
		Message: message,
	})
	return v
}

func (r *Renderer) render(f fragment) string {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, f); err != nil {
		log.WithError(err).Error("failed to render result fragment")
		return ""
	}
	return buf.String()
}

func terminalView(seq int64, counter models.CharCounter) models.View {
	return models.View{
		Sequence:      seq,
		SubmitLabel:   SubmitLabelIdle,
		ResultVisible: true,
		Counter:       counter,
	}
}
