package solarapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// AuthMode identifies which authentication header scheme a request used.
// The vendor's documentation says Bearer, parts of their fleet only accept
// a bare Token header, so the client supports both.
type AuthMode string

const (
	AuthModeBearer      AuthMode = "bearer"
	AuthModeTokenHeader AuthMode = "token_header"
)

const (
	// attemptsPerMode is the retry budget for each auth mode
	attemptsPerMode = 3
	// defaultTimeout bounds a single vendor call
	defaultTimeout = 10 * time.Second
	// bodyExcerptLimit caps how much of an error body is kept for diagnostics
	bodyExcerptLimit = 200
)

// defaultBackoff is the fixed backoff schedule applied before retryable
// outcomes (429, 5xx, timeout)
var defaultBackoff = []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second}

// Client issues authenticated calls against the vendor API. It holds no
// tenant state; base URL and token are supplied per call, so one client is
// safe to share across tenants and goroutines.
type Client struct {
	httpClient *http.Client
	log        *logrus.Logger
	timeout    time.Duration
	backoff    []time.Duration
}

// NewClient creates a vendor API client. A non-positive timeout falls back
// to the 10 second default.
func NewClient(log *logrus.Logger, timeout time.Duration) *Client {
	if log == nil {
		log = logrus.New()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{},
		log:        log,
		timeout:    timeout,
		backoff:    defaultBackoff,
	}
}

// SetBackoff overrides the retry backoff schedule. Used by tests to avoid
// real sleeps.
func (c *Client) SetBackoff(schedule []time.Duration) {
	if len(schedule) > 0 {
		c.backoff = schedule
	}
}

// MaskToken renders a token safe for logging: short tokens are fully
// hidden, longer ones keep the first and last four characters.
func MaskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}

// Request performs an authenticated vendor call and returns the parsed
// JSON body together with the auth mode that succeeded.
//
// Bearer auth is tried first. A 401/403 abandons the remaining retries for
// that mode and switches to the Token header with a fresh retry budget;
// only when both modes are exhausted does the call fail with auth_error.
// Within one mode, 429, 5xx and client-side timeouts are retried on the
// fixed backoff schedule; any other non-2xx status is terminal.
func (c *Client) Request(ctx context.Context, baseURL, token, method, path string, params map[string]string, body interface{}) (map[string]interface{}, AuthMode, error) {
	endpoint, err := c.buildURL(baseURL, path, params)
	if err != nil {
		return nil, "", NewError(CategoryValidation, 0, "invalid vendor URL: %v", err)
	}

	var lastErr error
	for _, mode := range []AuthMode{AuthModeBearer, AuthModeTokenHeader} {
		parsed, err := c.requestWithRetries(ctx, endpoint, token, method, path, mode, body)
		if err == nil {
			return parsed, mode, nil
		}

		lastErr = err
		apiErr := AsError(err)
		if apiErr.Category != CategoryAuth {
			// Only auth rejections trigger the mode fallback
			return nil, mode, err
		}
	}

	return nil, AuthModeTokenHeader, lastErr
}

// requestWithRetries runs the retry loop for a single auth mode
func (c *Client) requestWithRetries(ctx context.Context, endpoint, token, method, path string, mode AuthMode, body interface{}) (map[string]interface{}, error) {
	var lastErr error
	for attempt := 1; attempt <= attemptsPerMode; attempt++ {
		c.log.WithFields(logrus.Fields{
			"path":      path,
			"auth_mode": mode,
			"attempt":   attempt,
			"token":     MaskToken(token),
		}).Debug("Calling vendor API")

		parsed, retryable, err := c.attempt(ctx, endpoint, token, method, mode, body)
		if err == nil {
			return parsed, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		if attempt == attemptsPerMode {
			break
		}

		backoff := c.backoff[min(attempt-1, len(c.backoff)-1)]
		select {
		case <-ctx.Done():
			return nil, NewError(CategoryTimeout, 0, "cancelled while waiting to retry: %v", ctx.Err())
		case <-time.After(backoff):
		}
	}
	return nil, lastErr
}

// attempt performs one HTTP exchange and classifies the outcome. The
// second return value reports whether the failure is retryable.
func (c *Client) attempt(ctx context.Context, endpoint, token, method string, mode AuthMode, body interface{}) (map[string]interface{}, bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, false, NewError(CategoryValidation, 0, "failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, endpoint, reader)
	if err != nil {
		return nil, false, NewError(CategoryUnknown, 0, "failed to build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch mode {
	case AuthModeTokenHeader:
		req.Header.Set("Token", token)
	default:
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, true, NewError(CategoryTimeout, 0, "vendor call exceeded %s deadline", c.timeout)
		}
		return nil, true, NewError(CategoryUpstream, 0, "vendor call failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, NewError(CategoryUpstream, resp.StatusCode, "failed to read vendor response: %v", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var parsed map[string]interface{}
		if err := json.Unmarshal(data, &parsed); err != nil {
			return nil, false, NewError(CategoryParse, resp.StatusCode, "vendor returned invalid JSON: %v", err)
		}
		return parsed, false, nil

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// Not retried within the mode; triggers the auth-mode fallback
		return nil, false, NewError(CategoryAuth, resp.StatusCode, "vendor rejected credentials (%s)", mode)

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, NewError(CategoryUpstream, resp.StatusCode, "vendor returned HTTP %d", resp.StatusCode)

	default:
		return nil, false, NewError(CategoryUpstream, resp.StatusCode,
			"vendor returned HTTP %d: %s", resp.StatusCode, excerpt(data))
	}
}

// buildURL joins the base URL and path and encodes query parameters
func (c *Client) buildURL(baseURL, path string, params map[string]string) (string, error) {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		return "", fmt.Errorf("empty base URL")
	}
	u, err := url.Parse(base + path)
	if err != nil {
		return "", err
	}
	if len(params) > 0 {
		q := u.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// excerpt truncates an error body for diagnostics
func excerpt(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > bodyExcerptLimit {
		return s[:bodyExcerptLimit]
	}
	return s
}

// isTimeout reports whether a transport error was a deadline expiry
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
