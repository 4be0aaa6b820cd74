package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spamcheck-backend/internal/controller"
	"spamcheck-backend/internal/middleware"
	"spamcheck-backend/internal/models"
	"spamcheck-backend/internal/repository"
	"spamcheck-backend/internal/services"
)

type predictorFunc func(ctx context.Context, text string) (models.PredictionResult, error)

func (f predictorFunc) Predict(ctx context.Context, text string) (models.PredictionResult, error) {
	return f(ctx, text)
}

func fixedPredictor(result models.PredictionResult, err error) predictorFunc {
	return func(ctx context.Context, text string) (models.PredictionResult, error) {
		return result, err
	}
}

func newRegistry(p controller.Predictor, minLength int) *controller.Registry {
	return controller.NewRegistry(func(id uuid.UUID) *controller.Controller {
		return controller.New(controller.Options{SessionID: id, Predictor: p, MinLength: minLength})
	})
}

type stubEnqueuer struct {
	err  error
	jobs []int64
}

func (s *stubEnqueuer) Enqueue(ctx context.Context, sessionID uuid.UUID, sequence int64) error {
	if s.err != nil {
		return s.err
	}
	s.jobs = append(s.jobs, sequence)
	return nil
}

func sessionRequest(method, target, body string, sessionID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-1")
	return req.WithContext(middleware.WithSessionID(req.Context(), sessionID))
}

func decodeView(t *testing.T, rr *httptest.ResponseRecorder) models.View {
	t.Helper()
	var v models.View
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

// ─── Check Handler Tests ───

func TestCheckHandler_Submit(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		predictor predictorFunc
		state     models.State
		failure   models.FailureKind
		label     models.Label
	}{
		{"spam", `{"text":"win a free cruise now"}`, fixedPredictor(models.PredictionResult{Label: models.LabelSpam}, nil), models.StateSuccess, models.FailureNone, models.LabelSpam},
		{"not spam", `{"text":"lunch at noon tomorrow?"}`, fixedPredictor(models.PredictionResult{Label: models.LabelNotSpam}, nil), models.StateSuccess, models.FailureNone, models.LabelNotSpam},
		{"empty", `{"text":"   "}`, fixedPredictor(models.PredictionResult{}, nil), models.StateFailure, models.FailureValidation, ""},
		{"server error", `{"text":"some email body"}`, fixedPredictor(models.PredictionResult{Error: "model not loaded"}, nil), models.StateFailure, models.FailureServer, ""},
		{"transport", `{"text":"some email body"}`, fixedPredictor(models.PredictionResult{}, &services.TransportError{StatusCode: 500}), models.StateFailure, models.FailureTransport, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewCheckHandler(newRegistry(tc.predictor, 0), &stubEnqueuer{})
			rr := httptest.NewRecorder()
			h.Submit(rr, sessionRequest(http.MethodPost, "/api/v1/checks", tc.body, uuid.New()))

			require.Equal(t, http.StatusOK, rr.Code)
			v := decodeView(t, rr)
			assert.Equal(t, tc.state, v.State)
			assert.Equal(t, tc.failure, v.Failure)
			assert.Equal(t, tc.label, v.Label)
			assert.False(t, v.SubmitDisabled)
			assert.True(t, v.ResultVisible)
		})
	}
}

func TestCheckHandler_SubmitInvalidBody(t *testing.T) {
	h := NewCheckHandler(newRegistry(fixedPredictor(models.PredictionResult{}, nil), 0), &stubEnqueuer{})
	rr := httptest.NewRecorder()
	h.Submit(rr, sessionRequest(http.MethodPost, "/api/v1/checks", `{not json`, uuid.New()))

	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, "req-1", resp.Error.RequestID)
}

func TestCheckHandler_SubmitWrongFieldType(t *testing.T) {
	h := NewCheckHandler(newRegistry(fixedPredictor(models.PredictionResult{}, nil), 0), &stubEnqueuer{})
	rr := httptest.NewRecorder()
	h.Submit(rr, sessionRequest(http.MethodPost, "/api/v1/checks", `{"text":42}`, uuid.New()))

	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, map[string]string{"text": "must be a string"}, resp.Error.Fields)
}

func TestCheckHandler_SubmitAsync(t *testing.T) {
	queue := &stubEnqueuer{}
	registry := newRegistry(fixedPredictor(models.PredictionResult{}, nil), 10)
	h := NewCheckHandler(registry, queue)
	session := uuid.New()

	rr := httptest.NewRecorder()
	h.SubmitAsync(rr, sessionRequest(http.MethodPost, "/api/v1/checks/async", `{"text":"claim your prize today"}`, session))

	require.Equal(t, http.StatusAccepted, rr.Code)
	v := decodeView(t, rr)
	assert.Equal(t, models.StateLoading, v.State)
	assert.True(t, v.SubmitDisabled)
	assert.Equal(t, controller.SubmitLabelLoading, v.SubmitLabel)
	assert.Equal(t, []int64{v.Sequence}, queue.jobs)

	// The view endpoint reports the same in-flight state.
	rr = httptest.NewRecorder()
	h.View(rr, sessionRequest(http.MethodGet, "/api/v1/checks/view", "", session))
	assert.Equal(t, models.StateLoading, decodeView(t, rr).State)
}

func TestCheckHandler_SubmitAsyncTooShort(t *testing.T) {
	queue := &stubEnqueuer{}
	h := NewCheckHandler(newRegistry(fixedPredictor(models.PredictionResult{}, nil), 10), queue)

	rr := httptest.NewRecorder()
	h.SubmitAsync(rr, sessionRequest(http.MethodPost, "/api/v1/checks/async", `{"text":"short"}`, uuid.New()))

	require.Equal(t, http.StatusOK, rr.Code)
	v := decodeView(t, rr)
	assert.Equal(t, models.FailureValidation, v.Failure)
	assert.Equal(t, "Please enter at least 10 characters for accurate analysis.", v.Message)
	assert.Empty(t, queue.jobs)
}

func TestCheckHandler_SubmitAsyncQueueDown(t *testing.T) {
	registry := newRegistry(fixedPredictor(models.PredictionResult{}, nil), 0)
	h := NewCheckHandler(registry, &stubEnqueuer{err: errors.New("connection refused")})
	session := uuid.New()

	rr := httptest.NewRecorder()
	h.SubmitAsync(rr, sessionRequest(http.MethodPost, "/api/v1/checks/async", `{"text":"hello there friend"}`, session))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	v := registry.Get(session).View()
	assert.Equal(t, models.StateFailure, v.State)
	assert.Equal(t, models.FailureTransport, v.Failure)
}

func TestCheckHandler_Counter(t *testing.T) {
	h := NewCheckHandler(newRegistry(nil, 0), &stubEnqueuer{})

	rr := httptest.NewRecorder()
	h.Counter(rr, sessionRequest(http.MethodPost, "/api/v1/counter", `{"text":"`+strings.Repeat("é", 501)+`"}`, uuid.New()))

	require.Equal(t, http.StatusOK, rr.Code)
	var c models.CharCounter
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &c))
	assert.Equal(t, models.CharCounter{Count: 501, Level: models.CharLevelWarning}, c)
}

// ─── Upstream Handler Tests ───

type stubUpstream struct {
	status      int
	body        []byte
	contentType string
	metrics     models.ModelMetrics
	health      models.UpstreamStatus
	err         error
	forwarded   []byte
}

func (s *stubUpstream) Forward(ctx context.Context, body []byte) (int, []byte, string, error) {
	s.forwarded = body
	return s.status, s.body, s.contentType, s.err
}

func (s *stubUpstream) Metrics(ctx context.Context) (models.ModelMetrics, error) {
	return s.metrics, s.err
}

func (s *stubUpstream) Health(ctx context.Context) (models.UpstreamStatus, error) {
	return s.health, s.err
}

func TestUpstreamHandler_PredictRelaysResponse(t *testing.T) {
	up := &stubUpstream{status: http.StatusOK, body: []byte(`{"prediction":"spam"}`), contentType: "application/json"}
	h := NewUpstreamHandler(up, repository.NewMemoryCheckLog())

	rr := httptest.NewRecorder()
	h.Predict(rr, httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{"text":"free money"}`)))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"prediction":"spam"}`, rr.Body.String())
	assert.Equal(t, `{"text":"free money"}`, string(up.forwarded))
}

func TestUpstreamHandler_PredictKeepsUpstreamStatus(t *testing.T) {
	up := &stubUpstream{status: http.StatusInternalServerError, body: []byte(`{"error":"Model not loaded"}`)}
	h := NewUpstreamHandler(up, repository.NewMemoryCheckLog())

	rr := httptest.NewRecorder()
	h.Predict(rr, httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{"text":"x"}`)))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}

func TestUpstreamHandler_TransportFailure(t *testing.T) {
	up := &stubUpstream{err: &services.TransportError{Err: context.DeadlineExceeded}}
	h := NewUpstreamHandler(up, repository.NewMemoryCheckLog())

	for name, fn := range map[string]http.HandlerFunc{"predict": h.Predict, "metrics": h.Metrics, "health": h.Health} {
		t.Run(name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			fn(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)))

			assert.Equal(t, http.StatusBadGateway, rr.Code)
			var resp models.ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, "UPSTREAM_ERROR", resp.Error.Code)
		})
	}
}

func TestUpstreamHandler_Metrics(t *testing.T) {
	acc := 0.97
	h := NewUpstreamHandler(&stubUpstream{metrics: models.ModelMetrics{Accuracy: &acc}}, repository.NewMemoryCheckLog())
	rr := httptest.NewRecorder()
	h.Metrics(rr, httptest.NewRequest(http.MethodGet, "/api/v1/model/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"accuracy":0.97}`, rr.Body.String())

	h = NewUpstreamHandler(&stubUpstream{metrics: models.ModelMetrics{Error: "Model not loaded"}}, repository.NewMemoryCheckLog())
	rr = httptest.NewRecorder()
	h.Metrics(rr, httptest.NewRequest(http.MethodGet, "/api/v1/model/metrics", nil))
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestUpstreamHandler_Stats(t *testing.T) {
	log := repository.NewMemoryCheckLog()
	require.NoError(t, log.Record(context.Background(), &models.CheckRecord{
		SessionID: uuid.New(), Sequence: 1, State: models.StateSuccess, Label: models.LabelSpam, DurationMS: 40,
	}))
	h := NewUpstreamHandler(&stubUpstream{}, log)

	rr := httptest.NewRecorder()
	h.Stats(rr, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var stats models.CheckStats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.Total)
}

// ─── Session Handler Tests ───

func TestSessionHandler_Create(t *testing.T) {
	auth := middleware.NewSessionAuth("test-secret", time.Hour)
	h := NewSessionHandler(auth)

	rr := httptest.NewRecorder()
	h.Create(rr, httptest.NewRequest(http.MethodPost, "/api/v1/session", nil))

	require.Equal(t, http.StatusCreated, rr.Code)
	var resp models.SessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	id, err := auth.Parse(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.SessionID, id)
	assert.WithinDuration(t, time.Now().Add(time.Hour), resp.ExpiresAt, time.Minute)
}

// ─── Page Handler Tests ───

func TestPageHandler_ShowIdle(t *testing.T) {
	h := NewPageHandler(newRegistry(nil, 10))
	rr := httptest.NewRecorder()
	h.Show(rr, sessionRequest(http.MethodGet, "/", "", uuid.New()))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rr.Body.String(), controller.SubmitLabelIdle)
	assert.NotContains(t, rr.Body.String(), `id="result"`)
}

func TestPageHandler_SubmitRendersResult(t *testing.T) {
	h := NewPageHandler(newRegistry(fixedPredictor(models.PredictionResult{Label: models.LabelSpam}, nil), 10))

	form := url.Values{"text": {"URGENT: you won a prize"}}
	req := sessionRequest(http.MethodPost, "/", form.Encode(), uuid.New())
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rr := httptest.NewRecorder()
	h.Submit(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "result-spam")
	assert.Contains(t, body, controller.MessageSpam)
	assert.Contains(t, body, "URGENT: you won a prize")
}

func TestPageHandler_SubmitEscapesServerError(t *testing.T) {
	h := NewPageHandler(newRegistry(fixedPredictor(models.PredictionResult{Error: `<script>alert("x")</script>broken`}, nil), 0))

	form := url.Values{"text": {"anything at all"}}
	req := sessionRequest(http.MethodPost, "/", form.Encode(), uuid.New())
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rr := httptest.NewRecorder()
	h.Submit(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "<script>")
	assert.Contains(t, rr.Body.String(), "result-error")
}
