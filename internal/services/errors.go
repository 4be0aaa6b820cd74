package services

import (
	"fmt"
	"html"
	"net/http"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// Custom errors

// TransportError covers everything that kept a usable body from arriving:
// dial failures, timeouts, cancellation and non-2xx statuses.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("prediction endpoint returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("prediction request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UnexpectedResponseError is a 2xx whose body matched neither response shape.
type UnexpectedResponseError struct {
	Body string
}

func (e *UnexpectedResponseError) Error() string {
	return "unexpected response from prediction endpoint"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

var (
	pagePolicyOnce sync.Once
	pagePolicy     *bluemonday.Policy
)

// pageSanitizer strips every tag, leaving the visible text of a page.
func pageSanitizer() *bluemonday.Policy {
	pagePolicyOnce.Do(func() {
		pagePolicy = bluemonday.StrictPolicy()
		pagePolicy.AddSpaceWhenStrippingTag(true)
	})
	return pagePolicy
}

// bodySnippet shortens an upstream body for errors and logs. Proxies and
// web servers answer failures with HTML pages; those are reduced to their
// text so the log line stays readable.
func bodySnippet(body []byte, max int) string {
	s := string(body)
	head := strings.ToLower(strings.TrimSpace(s))
	if strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html") {
		s = html.UnescapeString(pageSanitizer().Sanitize(s))
		s = strings.Join(strings.Fields(s), " ")
	}
	return truncate(s, max)
}
