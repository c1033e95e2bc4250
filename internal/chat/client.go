package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrSendFailed is the single failure kind of the send pipeline. Transport
// errors, non-2xx statuses and undecodable replies all wrap it.
var ErrSendFailed = errors.New("send failed")

// Client delivers one message and returns the reply text.
type Client interface {
	Send(ctx context.Context, text string) (string, error)
}

// Doer is the subset of *http.Client the chat client needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ChatRequest is the body posted to the chat endpoint.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the success body returned by the chat endpoint.
type ChatResponse struct {
	Response *string `json:"response"`
}

// HTTPClient posts {"message": ...} to Endpoint and reads {"response": ...}.
type HTTPClient struct {
	Endpoint string
	Doer     Doer
}

func NewHTTPClient(endpoint string, doer Doer) *HTTPClient {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &HTTPClient{Endpoint: endpoint, Doer: doer}
}

func (c *HTTPClient) Send(ctx context.Context, text string) (string, error) {
	payload, err := json.Marshal(ChatRequest{Message: text})
	if err != nil {
		return "", fmt.Errorf("%w: failed to marshal request: %v", ErrSendFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: failed to create request: %v", ErrSendFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Doer.Do(req)
	if err != nil {
		// Keep the context error reachable so callers can tell cancellation apart.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%w: %w", ErrSendFailed, ctxErr)
		}
		return "", fmt.Errorf("%w: failed to send request: %v", ErrSendFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %v", ErrSendFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: server returned error %d: %s", ErrSendFailed, resp.StatusCode, serverErrorDetail(resp, body))
	}

	var out ChatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: failed to decode response: %v", ErrSendFailed, err)
	}
	if out.Response == nil {
		return "", fmt.Errorf("%w: response field missing", ErrSendFailed)
	}
	return *out.Response, nil
}

// serverErrorDetail extracts a readable message from an error body, accepting
// {"error": ...}, {"message": ...} and {"detail": "..."} envelopes.
func serverErrorDetail(resp *http.Response, body []byte) string {
	var env struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Detail  any    `json:"detail"`
	}
	if json.Unmarshal(body, &env) == nil {
		if env.Error != "" {
			return env.Error
		}
		if env.Message != "" {
			return env.Message
		}
		if s, ok := env.Detail.(string); ok && s != "" {
			return s
		}
	}
	s := strings.TrimSpace(string(body))
	if s == "" {
		return http.StatusText(resp.StatusCode)
	}
	return s
}
