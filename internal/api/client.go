// Package api is the authenticated REST client for the TeamFlow backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/teamflow/teamflow-cli/internal/core"
	"github.com/teamflow/teamflow-cli/internal/session"
)

// Config configures the REST client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client issues REST calls with the session's bearer token. It never retries.
type Client struct {
	baseURL string
	http    *http.Client
	session *session.Store
	log     *zerolog.Logger
}

// New builds a REST client.
func New(cfg Config, sess *session.Store, logger *zerolog.Logger) *Client {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		session: sess,
		log:     logger,
	}
}

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// Is maps status codes onto the core error taxonomy.
func (e *HTTPError) Is(target error) bool {
	switch target {
	case core.ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case core.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// errorBody covers the error shapes the backend answers with.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out, true)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, in, out, true)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any, authed bool) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out, authed)
}

func (c *Client) do(req *http.Request, out any, authed bool) error {
	if authed {
		token, ok := c.session.Token()
		if !ok {
			return core.ErrNoSession
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("method", req.Method).Str("path", req.URL.Path).Str("request_id", requestID).Msg("http request failed")
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(started)).
		Str("request_id", requestID).
		Msg("http request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	httpErr := &HTTPError{StatusCode: resp.StatusCode}
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		httpErr.Message = body.Error
		if httpErr.Message == "" {
			httpErr.Message = body.Message
		}
	}
	if httpErr.Message == "" {
		httpErr.Message = strings.TrimSpace(string(raw))
	}
	return httpErr
}

// IsAuthFailure reports whether err means the user has to log in again.
func IsAuthFailure(err error) bool {
	return errors.Is(err, core.ErrUnauthorized) || errors.Is(err, core.ErrNoSession)
}
