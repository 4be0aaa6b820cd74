package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spamcheck-backend/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *PredictionClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewPredictionClient(srv.URL+"/predict", 2*time.Second, 2)
	require.NoError(t, err)
	return client
}

func TestPredictionClient_SendsJSONBody(t *testing.T) {
	var gotMethod, gotType, gotPath string
	var gotBody models.Submission

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotType = r.Header.Get("Content-Type")
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"prediction":"spam"}`))
	})

	result, err := client.Predict(context.Background(), "WIN a free cruise now")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, "/predict", gotPath)
	assert.Equal(t, "WIN a free cruise now", gotBody.Text)
	assert.Equal(t, models.LabelSpam, result.Label)
}

func TestPredictionClient_ServerErrorField(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"model unavailable"}`))
	})

	result, err := client.Predict(context.Background(), "hello there friend")
	require.NoError(t, err)
	assert.True(t, result.IsError())
	assert.Equal(t, "model unavailable", result.Error)
}

func TestPredictionClient_Non2xxIsTransport(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Model or vectorizer not loaded"}`))
	})

	_, err := client.Predict(context.Background(), "hello there friend")

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, http.StatusInternalServerError, transportErr.StatusCode)
	assert.Contains(t, transportErr.Body, "vectorizer")
}

func TestPredictionClient_HTMLErrorPageReducedToText(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>\r\n<head><title>502 Bad Gateway</title></head>\r\n<body>\r\n" +
			"<center><h1>502 Bad Gateway</h1></center>\r\n<hr><center>nginx</center>\r\n</body>\r\n</html>"))
	})

	_, err := client.Predict(context.Background(), "hello there friend")

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, http.StatusBadGateway, transportErr.StatusCode)
	assert.NotContains(t, transportErr.Body, "<")
	assert.Contains(t, transportErr.Body, "502 Bad Gateway")
	assert.True(t, strings.HasSuffix(transportErr.Body, "nginx"))
}

func TestBodySnippet_KeepsJSONVerbatim(t *testing.T) {
	assert.Equal(t, `{"error":"missing <text> field"}`, bodySnippet([]byte(`{"error":"missing <text> field"}`), 1024))
	assert.Equal(t, "abc...", bodySnippet([]byte("abcdef"), 3))
}

func TestPredictionClient_MalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"label":"spam"}`))
	})

	_, err := client.Predict(context.Background(), "hello there friend")

	var unexpected *UnexpectedResponseError
	assert.True(t, errors.As(err, &unexpected))
}

func TestPredictionClient_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := NewPredictionClient(url+"/predict", time.Second, 1)
	require.NoError(t, err)

	_, err = client.Predict(context.Background(), "hello there friend")

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Zero(t, transportErr.StatusCode)
}

func TestPredictionClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client, err := NewPredictionClient(srv.URL+"/predict", 50*time.Millisecond, 1)
	require.NoError(t, err)

	_, err = client.Predict(context.Background(), "hello there friend")

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestPredictionClient_CancelledWhileWaitingForSlot(t *testing.T) {
	client, err := NewPredictionClient("http://127.0.0.1:1/predict", time.Second, 1)
	require.NoError(t, err)

	// Hold the only slot.
	require.NoError(t, client.acquireRate(context.Background()))
	defer client.releaseRate()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.Predict(ctx, "hello there friend")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPredictionClient_Forward(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write(body)
	})

	status, body, contentType, err := client.Forward(context.Background(), []byte(`{"text":""}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, `{"text":""}`, string(body))
	assert.Equal(t, "application/json", contentType)
}

func TestPredictionClient_MetricsAndHealth(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/metrics":
			w.Write([]byte(`{"accuracy":0.9709}`))
		case "/":
			w.Write([]byte(`{"status":"ok","message":"Email Spam Classifier Backend Running!"}`))
		default:
			http.NotFound(w, r)
		}
	})

	m, err := client.Metrics(context.Background())
	require.NoError(t, err)
	require.NotNil(t, m.Accuracy)
	assert.InDelta(t, 0.9709, *m.Accuracy, 1e-9)

	s, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", s.Status)
}

func TestPredictionClient_MetricsUnavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Accuracy not available"}`))
	})

	m, err := client.Metrics(context.Background())
	require.NoError(t, err)
	assert.Nil(t, m.Accuracy)
	assert.Equal(t, "Accuracy not available", m.Error)
}

func TestNewPredictionClient_RejectsRelative(t *testing.T) {
	_, err := NewPredictionClient("/predict", time.Second, 1)
	assert.Error(t, err)
}
