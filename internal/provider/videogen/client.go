// Package videogen implements provider adapters for the HTTP video
// generation models. The adapters share a small JSON API client that
// translates transport failures and non-2xx responses into the uniform
// raw failure shape the classifier understands.
package videogen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lcollado/adforge/internal/generation"
)

// Config holds the connection settings for one video provider.
type Config struct {
	BaseURL string
	APIKey  string

	// HTTPTimeout bounds a single HTTP exchange, not the whole job. Zero
	// means 30 seconds.
	HTTPTimeout time.Duration
}

// apiClient is a minimal JSON-over-HTTP client shared by the video
// adapters.
type apiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

func newAPIClient(cfg Config, logger *slog.Logger) *apiClient {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &apiClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// errorBody is the error envelope the video providers return on non-2xx
// responses.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

func (e errorBody) text() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Error != "":
		return e.Error
	default:
		return e.Detail
	}
}

// doJSON performs one JSON request. body may be nil; out may be nil when
// the response body is irrelevant. Failures are reported as *RawError so
// the classifier can inspect status codes, timeout flags and retry
// hints.
func (c *apiClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("failed to close response body", "error", cerr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return responseError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &generation.RawError{
			Message: fmt.Sprintf("decode response: %v", err),
			Err:     err,
		}
	}
	return nil
}

func transportError(err error) error {
	timeout := errors.Is(err, context.DeadlineExceeded)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		timeout = true
	}
	return &generation.RawError{
		Timeout: timeout,
		Message: err.Error(),
		Err:     err,
	}
}

func responseError(resp *http.Response) error {
	raw := &generation.RawError{StatusCode: resp.StatusCode}

	limited := io.LimitReader(resp.Body, 4096)
	data, _ := io.ReadAll(limited)
	var eb errorBody
	if err := json.Unmarshal(data, &eb); err == nil && eb.text() != "" {
		raw.Message = eb.text()
	} else {
		raw.Message = http.StatusText(resp.StatusCode)
	}

	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			raw.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return raw
}
