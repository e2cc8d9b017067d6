package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// MaxResponseBytes caps how much of an upstream body is read.
const MaxResponseBytes = 8 << 20

const snippetLen = 200

// UpstreamError is a non-2xx answer. Body holds the (capped) response for provider-specific
// message extraction.
type UpstreamError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *UpstreamError) Error() string {
	snippet := strings.TrimSpace(string(e.Body))
	if len(snippet) > snippetLen {
		snippet = snippet[:snippetLen] + "..."
	}
	if snippet == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, snippet)
}

// HTTPClient defines the interface for an HTTP client
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// SendRequest posts body as JSON and returns the raw response body.
// Non-2xx answers come back as *UpstreamError carrying the body; transport errors are wrapped
// so context cancellation and deadlines stay visible to errors.Is.
func SendRequest(ctx context.Context, client HTTPClient, method, url string, headers map[string]string, body any) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{
			Method:     method,
			URL:        url,
			StatusCode: resp.StatusCode,
			Body:       respBody,
		}
	}

	return respBody, nil
}
