// Package hosted implements the backend surface against a Supabase-compatible
// service: GoTrue under /auth/v1, PostgREST under /rest/v1 and Storage under
// /storage/v1, all authorised with the project's public anon key.
package hosted

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/modernplatform/modern-platform/internal/backend"
)

// Config locates the hosted project.
type Config struct {
	URL     string
	AnonKey string
	Timeout time.Duration
}

type client struct {
	http    *resty.Client
	baseURL string
	anonKey string
	now     func() time.Time
}

// New returns a backend.Client talking to the hosted service.
func New(cfg Config) (*backend.Client, error) {
	if cfg.URL == "" || cfg.AnonKey == "" {
		return nil, fmt.Errorf("hosted backend needs BACKEND_URL and BACKEND_ANON_KEY")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	base := strings.TrimRight(cfg.URL, "/")
	c := &client{
		http: resty.New().
			SetBaseURL(base).
			SetHeader("apikey", cfg.AnonKey).
			SetHeader("Content-Type", "application/json").
			SetTimeout(cfg.Timeout),
		baseURL: base,
		anonKey: cfg.AnonKey,
		now:     time.Now,
	}
	return &backend.Client{Auth: &Auth{c}, Rows: &Rows{c}, Blobs: &Blobs{c}}, nil
}

// request starts a call authorised as the token in ctx, or anonymously.
func (c *client) request(ctx context.Context) *resty.Request {
	return c.requestAs(ctx, backend.AccessToken(ctx))
}

func (c *client) requestAs(ctx context.Context, token string) *resty.Request {
	if token == "" {
		token = c.anonKey
	}
	return c.http.R().SetContext(ctx).SetAuthToken(token)
}

// errorBody covers the error shapes of GoTrue and PostgREST. GoTrue sends a
// numeric code, PostgREST a string one.
type errorBody struct {
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	Msg              string          `json:"msg"`
	Message          string          `json:"message"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

// apiError classifies a failed response.
func apiError(resp *resty.Response) error {
	var body errorBody
	_ = json.Unmarshal(resp.Body(), &body)
	code := strings.Trim(string(body.Code), `"`)
	msg := firstNonEmpty(body.Msg, body.Message, body.ErrorDescription, body.Error)
	if msg == "" {
		msg = fmt.Sprintf("backend returned %s", resp.Status())
	}
	e := &backend.APIError{Status: resp.StatusCode(), Code: firstNonEmpty(body.ErrorCode, code), Message: msg}
	lower := strings.ToLower(msg)
	switch {
	case body.ErrorCode == "user_already_exists" || body.ErrorCode == "email_exists" || strings.Contains(lower, "already registered"):
		e.Kind = backend.ErrAlreadyRegistered
	case body.ErrorCode == "invalid_credentials" || body.Error == "invalid_grant":
		e.Kind = backend.ErrInvalidCredentials
	case code == "23505":
		e.Kind = backend.ErrConflict
	case code == "42501" || resp.StatusCode() == http.StatusForbidden:
		e.Kind = backend.ErrForbidden
	case code == "PGRST116" || resp.StatusCode() == http.StatusNotFound:
		e.Kind = backend.ErrNotFound
	case code == "PGRST301" || resp.StatusCode() == http.StatusUnauthorized:
		e.Kind = backend.ErrUnauthorized
	}
	return e
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
