package railapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"railbooker/internal/errs"
	"railbooker/monitoring"
	"railbooker/utils"
)

type ClientConfig struct {
	BaseURL string        `json:"baseUrl" yaml:"base_url"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// Client is the HTTP client for the railway e-ticket API. All calls carry a
// bounded timeout and pass through a circuit breaker so a failing upstream
// cannot stall the process.
type Client struct {
	baseURL string
	hc      *http.Client
	cb      *utils.CircuitBreaker
	log     *slog.Logger
}

func NewClient(cfg ClientConfig, log *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		hc:      &http.Client{Timeout: timeout},
		cb:      utils.NewCircuitBreaker("railapi"),
		log:     log,
	}
}

// apiError is the error envelope the service returns on non-200 responses.
type apiError struct {
	Error struct {
		Messages []string `json:"messages"`
	} `json:"error"`
}

func (e apiError) message() string {
	if len(e.Error.Messages) == 0 {
		return "no detail"
	}
	return strings.Join(e.Error.Messages, "; ")
}

// do performs one request and decodes the 200 response body into out.
// Non-200 statuses are mapped onto the engine's error taxonomy.
func (c *Client) do(ctx context.Context, op, method, path string, params url.Values, body, out any) error {
	start := time.Now()
	err := c.cb.Execute(func() error {
		return c.roundTrip(ctx, op, method, path, params, body, out)
	})
	status := "ok"
	if err != nil {
		status = "error"
	}
	monitoring.TrackRemoteCall(op, status, time.Since(start))
	return err
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, params url.Values, body, out any) error {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, ok := tokenFrom(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return &errs.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errs.NetworkError{Op: op, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return c.mapStatus(op, resp, raw)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%s: decode response: %w", op, err)
		}
	}
	return nil
}

func (c *Client) mapStatus(op string, resp *http.Response, raw []byte) error {
	var envelope apiError
	_ = json.Unmarshal(raw, &envelope)
	detail := envelope.message()

	c.log.Debug("remote service error",
		"operation", op, "status", resp.StatusCode, "detail", detail)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &errs.AuthenticationError{Detail: detail}

	case resp.StatusCode == http.StatusTooManyRequests:
		return &errs.RateLimitedError{Op: op, RetryAfter: retryAfter(resp)}

	case resp.StatusCode == http.StatusConflict:
		return &errs.SeatConflictError{Detail: detail}

	case resp.StatusCode == http.StatusUnprocessableEntity &&
		strings.Contains(strings.ToLower(detail), "reserved"):
		// The service reports raced seats as a 422 validation error.
		return &errs.SeatConflictError{Detail: detail}

	case resp.StatusCode >= http.StatusInternalServerError:
		return &errs.NetworkError{Op: op, Err: fmt.Errorf("remote status %d: %s", resp.StatusCode, detail)}

	default:
		return fmt.Errorf("%s: remote status %d: %s", op, resp.StatusCode, detail)
	}
}

// retryAfter reads the Retry-After header, which carries either delta
// seconds or an HTTP date.
func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

type tokenKey struct{}

// withToken stores the bearer token for one request.
func withToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey{}).(string)
	return token, ok && token != ""
}
