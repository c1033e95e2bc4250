package utils

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"chatwidget-cli/internal/chat"
)

// HTTPClient is the part of *http.Client the chat transport needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const maxLoggedBody = 1024

// LoggingClient records every chat exchange on the debug logger: method, url,
// pipeline, status, elapsed time and both bodies (truncated). Bodies are
// handed on unchanged.
type LoggingClient struct {
	Inner   HTTPClient
	MaxBody int
	now     func() time.Time
}

// NewHTTPClient returns the client used for chat requests. A zero timeout
// leaves requests bounded only by their context.
func NewHTTPClient(timeout time.Duration) *LoggingClient {
	return &LoggingClient{Inner: &http.Client{Timeout: timeout}, MaxBody: maxLoggedBody}
}

func (c *LoggingClient) Do(req *http.Request) (*http.Response, error) {
	inner := c.Inner
	if inner == nil {
		inner = http.DefaultClient
	}
	clock := c.now
	if clock == nil {
		clock = time.Now
	}

	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("url", req.URL.Redacted()),
	}
	if id := chat.PipelineIDFromContext(req.Context()); id != "" {
		fields = append(fields, zap.String("pipeline", id))
	}
	log := Logger().With(fields...)

	var sent []byte
	req.Body, sent = teeBody(req.Body)

	start := clock()
	resp, err := inner.Do(req)
	elapsed := clock().Sub(start)
	if err != nil {
		log.Debug("chat request failed",
			zap.Duration("elapsed", elapsed),
			zap.String("request_body", c.clip(sent)),
			zap.Error(err))
		return nil, err
	}

	var received []byte
	resp.Body, received = teeBody(resp.Body)
	log.Debug("chat exchange",
		zap.Int("status", resp.StatusCode),
		zap.String("content_type", resp.Header.Get("Content-Type")),
		zap.Duration("elapsed", elapsed),
		zap.String("request_body", c.clip(sent)),
		zap.String("response_body", c.clip(received)))
	return resp, nil
}

func (c *LoggingClient) clip(b []byte) string {
	limit := c.MaxBody
	if limit <= 0 {
		limit = maxLoggedBody
	}
	if len(b) > limit {
		return string(b[:limit]) + "... (truncated)"
	}
	return string(b)
}

// teeBody drains body and returns a replacement reader over the same bytes.
// A read error is replayed to whoever reads the replacement.
func teeBody(body io.ReadCloser) (io.ReadCloser, []byte) {
	if body == nil || body == http.NoBody {
		return body, nil
	}
	data, err := io.ReadAll(body)
	body.Close()
	var r io.Reader = bytes.NewReader(data)
	if err != nil {
		r = io.MultiReader(r, errReader{err})
	}
	return io.NopCloser(r), data
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }
