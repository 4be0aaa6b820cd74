package models

type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateSuccess State = "success"
	StateFailure State = "failure"
)

// Terminal reports whether the cycle has finished.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailure
}

type FailureKind string

const (
	FailureNone       FailureKind = ""
	FailureValidation FailureKind = "validation"
	FailureTransport  FailureKind = "transport"
	FailureServer     FailureKind = "server"
	FailureUnexpected FailureKind = "unexpected"
)

// View is everything a client needs to draw the form's current state.
type View struct {
	State          State       `json:"state"`
	Sequence       int64       `json:"sequence"`
	Failure        FailureKind `json:"failure,omitempty"`
	Label          Label       `json:"label,omitempty"`
	SubmitDisabled bool        `json:"submit_disabled"`
	SubmitLabel    string      `json:"submit_label"`
	LoadingVisible bool        `json:"loading_visible"`
	ResultVisible  bool        `json:"result_visible"`
	ResultClass    string      `json:"result_class,omitempty"`
	Icon           string      `json:"icon,omitempty"`
	Title          string      `json:"title,omitempty"`
	Message        string      `json:"message,omitempty"`
	HTML           string      `json:"html,omitempty"`
	Counter        CharCounter `json:"counter"`
}

type CharLevel string

const (
	CharLevelNormal  CharLevel = "normal"
	CharLevelWarning CharLevel = "warning"
	CharLevelDanger  CharLevel = "danger"
)

type CharCounter struct {
	Count int       `json:"count"`
	Level CharLevel `json:"level"`
}
