// Package controller implements the spam-check form's state machine.
//
// A Controller moves through idle → loading → success | failure for every
// submission. Each submission takes the next sequence number and cancels the
// request it supersedes; a response carrying an older sequence number is
// dropped, so only the most recent submission is ever rendered.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"spamcheck-backend/internal/models"
	"spamcheck-backend/internal/services"
)

const (
	SubmitLabelIdle    = "Analyze Email"
	SubmitLabelLoading = "Analyzing..."

	MessageEmpty      = "Please enter some email content to analyze."
	MessageTransport  = "An error occurred while analyzing the email. Please try again."
	MessageUnexpected = "Unexpected response."
	MessageSpam       = "This email appears to be SPAM!"
	MessageNotSpam    = "This email appears to be legitimate."
)

// maxPendingUpdates bounds the observer backlog of one session. When
// observers fall behind, the oldest undelivered views are dropped.
const maxPendingUpdates = 32

// Predictor classifies a single submission.
type Predictor interface {
	Predict(ctx context.Context, text string) (models.PredictionResult, error)
}

// Recorder receives an audit record for every finished cycle.
type Recorder interface {
	Record(ctx context.Context, rec *models.CheckRecord) error
}

type Options struct {
	SessionID uuid.UUID
	Endpoint  string
	// MinLength is the minimum trimmed length in characters; 0 disables it.
	MinLength int
	Predictor Predictor
	Recorder  Recorder
	Renderer  *Renderer
	Now       func() time.Time
}

// ValidationError is returned by Begin when the text is rejected locally.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ErrStale reports that a ticket was superseded by a newer submission.
var ErrStale = errors.New("submission superseded")

// Ticket identifies one in-flight submission.
type Ticket struct {
	Sequence int64
	Text     string
	ctx      context.Context
	started  time.Time
}

// Context is cancelled when the ticket is superseded or completed.
func (t Ticket) Context() context.Context {
	if t.ctx == nil {
		return context.Background()
	}
	return t.ctx
}

type Controller struct {
	opts Options

	mu         sync.Mutex
	seq        int64
	current    Ticket
	cancel     context.CancelFunc
	view       models.View
	lastActive time.Time
	// changed is closed and replaced on every accepted transition.
	changed chan struct{}

	observers []func(models.View)
	pending   []models.View
	draining  bool
}

func New(opts Options) *Controller {
	if opts.Renderer == nil {
		opts.Renderer = NewRenderer()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MinLength < 0 {
		opts.MinLength = 0
	}

	c := &Controller{opts: opts, lastActive: opts.Now(), changed: make(chan struct{})}
	c.view = idleView()
	return c
}

func idleView() models.View {
	return models.View{
		State:       models.StateIdle,
		SubmitLabel: SubmitLabelIdle,
		Counter:     CharCount(""),
	}
}

func (c *Controller) SessionID() uuid.UUID { return c.opts.SessionID }
func (c *Controller) MinLength() int       { return c.opts.MinLength }
func (c *Controller) Endpoint() string     { return c.opts.Endpoint }

// View returns a snapshot of the current state.
func (c *Controller) View() models.View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// LastActive is the time of the most recent Begin or Complete.
func (c *Controller) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// Observe registers fn to be called after every accepted transition.
// Calls happen in transition order on a background goroutine, so a slow
// observer never holds up the controller.
func (c *Controller) Observe(fn func(models.View)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Validate applies the local checks without changing state.
func (c *Controller) Validate(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", &ValidationError{Message: MessageEmpty}
	}
	if c.opts.MinLength > 0 && utf8.RuneCountInString(trimmed) < c.opts.MinLength {
		return "", &ValidationError{
			Message: fmt.Sprintf("Please enter at least %d characters for accurate analysis.", c.opts.MinLength),
		}
	}
	return trimmed, nil
}

// Begin starts a new cycle. Any in-flight request is cancelled and its
// response will be ignored. Text failing validation moves straight to a
// validation failure and returns a *ValidationError; no request is made.
func (c *Controller) Begin(parent context.Context, text string) (Ticket, models.View, error) {
	trimmed, verr := c.Validate(text)
	now := c.opts.Now()

	c.mu.Lock()
	c.seq++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.lastActive = now
	counter := CharCount(text)

	if verr != nil {
		c.current = Ticket{}
		c.view = c.opts.Renderer.Failure(c.seq, models.FailureValidation, verr.Error(), counter)
		view, rec := c.view, c.record(c.seq, now, now)
		c.publishLocked(view)

		c.store(rec)
		return Ticket{}, view, verr
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	c.current = Ticket{Sequence: c.seq, Text: trimmed, ctx: ctx, started: now}
	c.view = models.View{
		State:          models.StateLoading,
		Sequence:       c.seq,
		SubmitDisabled: true,
		SubmitLabel:    SubmitLabelLoading,
		LoadingVisible: true,
		Counter:        counter,
	}
	ticket, view := c.current, c.view
	c.publishLocked(view)

	log.WithFields(log.Fields{
		"session_id": c.opts.SessionID,
		"sequence":   ticket.Sequence,
	}).Debug("submission started")

	return ticket, view, nil
}

// Ticket returns the in-flight ticket if seq is still current.
func (c *Controller) Ticket(seq int64) (Ticket, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq == 0 || seq != c.current.Sequence || c.view.State != models.StateLoading {
		return Ticket{}, false
	}
	return c.current, true
}

// Complete applies the outcome of a request. It returns false, leaving the
// view untouched, when the ticket is no longer current.
func (c *Controller) Complete(t Ticket, result models.PredictionResult, err error) (models.View, bool) {
	now := c.opts.Now()

	c.mu.Lock()
	if t.Sequence == 0 || t.Sequence != c.current.Sequence || c.view.State != models.StateLoading {
		view := c.view
		c.mu.Unlock()
		log.WithFields(log.Fields{
			"session_id": c.opts.SessionID,
			"sequence":   t.Sequence,
			"current":    view.Sequence,
		}).Debug("dropping stale response")
		return view, false
	}

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.lastActive = now
	counter := c.view.Counter

	r := c.opts.Renderer
	switch {
	case err != nil:
		var unexpected *services.UnexpectedResponseError
		if errors.As(err, &unexpected) {
			c.view = r.Failure(t.Sequence, models.FailureUnexpected, MessageUnexpected, counter)
		} else {
			c.view = r.Failure(t.Sequence, models.FailureTransport, MessageTransport, counter)
		}
		log.WithFields(log.Fields{
			"session_id": c.opts.SessionID,
			"sequence":   t.Sequence,
		}).WithError(err).Warn("prediction failed")
	case result.IsError():
		c.view = r.Failure(t.Sequence, models.FailureServer, result.Error, counter)
		log.WithFields(log.Fields{
			"session_id": c.opts.SessionID,
			"sequence":   t.Sequence,
			"details":    result.Details,
		}).Warnf("prediction endpoint reported an error: %s", result.Error)
	case result.Label == models.LabelSpam || result.Label == models.LabelNotSpam:
		c.view = r.Success(t.Sequence, result.Label, counter)
	default:
		c.view = r.Failure(t.Sequence, models.FailureUnexpected, MessageUnexpected, counter)
	}

	view, rec := c.view, c.record(t.Sequence, t.started, now)
	c.publishLocked(view)

	c.store(rec)
	return view, true
}

// Submit runs a whole cycle synchronously and returns the resulting view.
// If a newer submission overtakes this one, Submit waits for that cycle to
// finish and returns its terminal view.
func (c *Controller) Submit(ctx context.Context, text string) models.View {
	ticket, view, err := c.Begin(ctx, text)
	if err != nil {
		return view
	}

	result, perr := c.opts.Predictor.Predict(ticket.Context(), ticket.Text)
	view, ok := c.Complete(ticket, result, perr)
	if !ok {
		return c.WaitTerminal(ctx)
	}
	return view
}

// WaitTerminal blocks until the current cycle reaches success or failure and
// returns that view. If ctx ends first, the view at that moment is returned.
func (c *Controller) WaitTerminal(ctx context.Context) models.View {
	for {
		c.mu.Lock()
		view, changed := c.view, c.changed
		c.mu.Unlock()

		if view.State != models.StateLoading {
			return view
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return c.View()
		}
	}
}

// touch marks the session as active at t.
func (c *Controller) touch(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.lastActive) {
		c.lastActive = t
	}
}

// Close cancels any in-flight request.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// publishLocked must be called with mu held; it releases mu.
func (c *Controller) publishLocked(view models.View) {
	close(c.changed)
	c.changed = make(chan struct{})

	if len(c.observers) > 0 {
		if len(c.pending) == maxPendingUpdates {
			c.pending = c.pending[1:]
		}
		c.pending = append(c.pending, view)
		if !c.draining {
			c.draining = true
			go c.drain()
		}
	}
	c.mu.Unlock()
}

// drain delivers pending views to the observers and exits once caught up.
func (c *Controller) drain() {
	for {
		c.mu.Lock()
		if len(c.pending) == 0 {
			c.draining = false
			c.mu.Unlock()
			return
		}
		view := c.pending[0]
		c.pending = c.pending[1:]
		observers := make([]func(models.View), len(c.observers))
		copy(observers, c.observers)
		c.mu.Unlock()

		for _, fn := range observers {
			fn(view)
		}
	}
}

// record must be called with mu held.
func (c *Controller) record(seq int64, started, finished time.Time) *models.CheckRecord {
	if c.opts.Recorder == nil {
		return nil
	}
	return &models.CheckRecord{
		SessionID:  c.opts.SessionID,
		Sequence:   seq,
		State:      c.view.State,
		Failure:    c.view.Failure,
		Label:      c.view.Label,
		DurationMS: finished.Sub(started).Milliseconds(),
		Endpoint:   c.opts.Endpoint,
		CreatedAt:  finished,
	}
}

func (c *Controller) store(rec *models.CheckRecord) {
	if rec == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.opts.Recorder.Record(ctx, rec); err != nil {
		log.WithError(err).WithField("session_id", rec.SessionID).Warn("failed to record check")
	}
}

// CharCount reports the input length in characters and its display level.
func CharCount(text string) models.CharCounter {
	n := utf8.RuneCountInString(text)
	level := models.CharLevelNormal
	switch {
	case n > 1000:
		level = models.CharLevelDanger
	case n > 500:
		level = models.CharLevelWarning
	}
	return models.CharCounter{Count: n, Level: level}
}
