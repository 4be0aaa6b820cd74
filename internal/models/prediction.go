package models

import (
	"encoding/json"
	"strings"
)

// Submission is the text captured from the form for one submit cycle.
type Submission struct {
	Text string `json:"text"`
}

type Label string

const (
	LabelSpam    Label = "spam"
	LabelNotSpam Label = "not_spam"
)

// ParseLabel maps the endpoint's prediction string onto a Label.
// "not spam" and "not_spam" are both accepted; matching ignores case.
func ParseLabel(raw string) (Label, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "spam":
		return LabelSpam, true
	case "not spam", "not_spam":
		return LabelNotSpam, true
	}
	return "", false
}

// Wire form used by the endpoint ("not spam" with a space).
func (l Label) Wire() string {
	if l == LabelNotSpam {
		return "not spam"
	}
	return string(l)
}

// PredictionResult is either a classification or a server-supplied error.
// Exactly one of Label and Error is set. Details carries the endpoint's
// diagnostic text for an error and is never shown to the user.
type PredictionResult struct {
	Label   Label
	Error   string
	Details string
}

func (p PredictionResult) IsError() bool { return p.Error != "" }

// PredictionResponse is the raw JSON body returned by the prediction endpoint.
type PredictionResponse struct {
	Prediction *string `json:"prediction,omitempty"`
	Error      *string `json:"error,omitempty"`
	Details    string  `json:"details,omitempty"`
}

// DecodePredictionResponse decodes body into a PredictionResult. ok is false
// when the body is not JSON or matches neither shape.
func DecodePredictionResponse(body []byte) (result PredictionResult, ok bool) {
	var raw PredictionResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return PredictionResult{}, false
	}

	if raw.Prediction != nil {
		label, known := ParseLabel(*raw.Prediction)
		if !known {
			return PredictionResult{}, false
		}
		return PredictionResult{Label: label}, true
	}

	if raw.Error != nil && *raw.Error != "" {
		return PredictionResult{Error: *raw.Error, Details: raw.Details}, true
	}

	return PredictionResult{}, false
}

// ModelMetrics mirrors the endpoint's /metrics body.
type ModelMetrics struct {
	Accuracy *float64 `json:"accuracy,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// UpstreamStatus mirrors the endpoint's root status body.
type UpstreamStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
