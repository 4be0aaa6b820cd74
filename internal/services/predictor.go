package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"

	"spamcheck-backend/internal/models"
)

const maxResponseBytes = 1 << 20

// Predictor classifies a single submission.
type Predictor interface {
	Predict(ctx context.Context, text string) (models.PredictionResult, error)
}

// PredictionClient talks to the remote prediction endpoint.
type PredictionClient struct {
	endpoint   *url.URL
	httpClient *http.Client
	timeout    time.Duration
	rateChan   chan struct{} // Token bucket
}

func NewPredictionClient(endpoint string, timeout time.Duration, concurrentReqs int) (*PredictionClient, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prediction endpoint: %w", err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("prediction endpoint %q must be absolute", endpoint)
	}
	if concurrentReqs < 1 {
		concurrentReqs = 1
	}

	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &PredictionClient{
		endpoint:   u,
		httpClient: &http.Client{},
		timeout:    timeout,
		rateChan:   rateChan,
	}, nil
}

func (c *PredictionClient) Endpoint() string {
	return c.endpoint.String()
}

// acquireRate blocks until a rate slot is available
func (c *PredictionClient) acquireRate(ctx context.Context) error {
	select {
	case <-c.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *PredictionClient) releaseRate() {
	c.rateChan <- struct{}{}
}

// Predict posts {"text": text} to the endpoint. A {"error": ...} body on a
// 2xx is returned as a result, not as an error.
func (c *PredictionClient) Predict(ctx context.Context, text string) (models.PredictionResult, error) {
	payload, err := json.Marshal(models.Submission{Text: text})
	if err != nil {
		return models.PredictionResult{}, fmt.Errorf("failed to encode submission: %w", err)
	}

	status, body, _, err := c.do(ctx, http.MethodPost, c.endpoint, payload)
	if err != nil {
		return models.PredictionResult{}, err
	}

	if status < 200 || status > 299 {
		log.WithFields(log.Fields{
			"status": status,
			"body":   bodySnippet(body, 256),
		}).Warn("prediction endpoint returned non-2xx")
		return models.PredictionResult{}, &TransportError{StatusCode: status, Body: bodySnippet(body, 1024)}
	}

	result, ok := models.DecodePredictionResponse(body)
	if !ok {
		return models.PredictionResult{}, &UnexpectedResponseError{Body: bodySnippet(body, 1024)}
	}
	return result, nil
}

// Forward relays a raw request body to the endpoint and hands back the raw
// response, for the same-origin /predict route.
func (c *PredictionClient) Forward(ctx context.Context, body []byte) (int, []byte, string, error) {
	return c.do(ctx, http.MethodPost, c.endpoint, body)
}

// Metrics reads the model accuracy from the endpoint's sibling /metrics route.
func (c *PredictionClient) Metrics(ctx context.Context) (models.ModelMetrics, error) {
	var m models.ModelMetrics
	status, body, _, err := c.do(ctx, http.MethodGet, c.sibling("metrics"), nil)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(body, &m); err != nil {
		return m, &UnexpectedResponseError{Body: bodySnippet(body, 1024)}
	}
	if status < 200 || status > 299 {
		if m.Error != "" {
			return m, nil
		}
		return m, &TransportError{StatusCode: status, Body: bodySnippet(body, 1024)}
	}
	return m, nil
}

// Health reads the endpoint service's root status document.
func (c *PredictionClient) Health(ctx context.Context) (models.UpstreamStatus, error) {
	var s models.UpstreamStatus
	status, body, _, err := c.do(ctx, http.MethodGet, c.sibling("./"), nil)
	if err != nil {
		return s, err
	}
	if status < 200 || status > 299 {
		return s, &TransportError{StatusCode: status, Body: bodySnippet(body, 1024)}
	}
	if err := json.Unmarshal(body, &s); err != nil {
		return s, &UnexpectedResponseError{Body: bodySnippet(body, 1024)}
	}
	return s, nil
}

func (c *PredictionClient) sibling(ref string) *url.URL {
	return c.endpoint.ResolveReference(&url.URL{Path: ref})
}

func (c *PredictionClient) do(ctx context.Context, method string, u *url.URL, payload []byte) (int, []byte, string, error) {
	if err := c.acquireRate(ctx); err != nil {
		return 0, nil, "", &TransportError{Err: err}
	}
	defer c.releaseRate()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return 0, nil, "", fmt.Errorf("failed to build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, "", &TransportError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	return resp.StatusCode, body, resp.Header.Get("Content-Type"), nil
}
