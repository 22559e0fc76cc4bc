// Package coderun talks to the code-execution backend that runs snippets
// from the portal's editor.
package coderun

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Partho99/devops-learner/internal/logging"
)

// NoOutput is shown when the backend returns neither output nor error.
const NoOutput = "No output"

// maxResponseSize caps how much of a backend response is read.
const maxResponseSize = 1 << 20

// ErrUnsupportedLanguage is returned before any request for a language the
// backend does not know.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Request is the payload sent to the backend.
type Request struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// Response is the backend's answer. Either field may be absent.
type Response struct {
	Output *string `json:"output,omitempty"`
	Error  *string `json:"error,omitempty"`
}

// Text is what the output pane shows: the output if present, else the
// error, else NoOutput.
func (r Response) Text() string {
	switch {
	case r.Output != nil:
		return *r.Output
	case r.Error != nil:
		return *r.Error
	default:
		return NoOutput
	}
}

// BackendError reports a failed call to the execution backend: a transport
// failure or a non-success status.
type BackendError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *BackendError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *BackendError) Unwrap() error { return e.Err }

// FailureText renders err the way the output pane shows failures.
func FailureText(err error) string {
	return "Error: " + err.Error()
}

// Client calls the execution backend at a fixed URL.
type Client struct {
	url        string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a client for the backend endpoint url. A non-positive
// timeout means 30 seconds.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.For("coderun"),
	}
}

// Run submits code for execution. Failures to reach the backend and
// non-success statuses are returned as *BackendError.
func (c *Client) Run(ctx context.Context, req Request) (Response, error) {
	if !Supported(req.Language) {
		return Response{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, req.Language)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal body: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn().Err(err).Str("language", req.Language).Msg("backend unreachable")
		return Response{}, &BackendError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return Response{}, &BackendError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode >= 300 {
		c.logger.Warn().Int("status", resp.StatusCode).Str("language", req.Language).Msg("backend rejected run")
		return Response{}, &BackendError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}

	var out Response
	if err := json.Unmarshal(data, &out); err != nil {
		return Response{}, &BackendError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	c.logger.Debug().Str("language", req.Language).Dur("took", time.Since(start)).Msg("run complete")
	return out, nil
}
