package hosted

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modernplatform/modern-platform/internal/backend"
)

// Auth implements backend.Auth with GoTrue.
type Auth struct{ c *client }

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userJSON struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func (u userJSON) identity() backend.Identity {
	return backend.Identity{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}
}

// tokenResponse is a GoTrue session. A sign-up that awaits email
// confirmation returns only the user fields at top level.
type tokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    int64     `json:"expires_at"`
	User         *userJSON `json:"user"`
	userJSON
}

func (a *Auth) session(t *tokenResponse) *backend.Session {
	s := &backend.Session{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken}
	switch {
	case t.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(t.ExpiresAt, 0).UTC()
	case t.ExpiresIn > 0:
		s.ExpiresAt = a.c.now().Add(time.Duration(t.ExpiresIn) * time.Second).UTC()
	}
	if t.User != nil {
		s.User = t.User.identity()
	} else {
		s.User = t.userJSON.identity()
	}
	return s
}

func (a *Auth) token(ctx context.Context, grant string, body any) (*backend.Session, error) {
	var out tokenResponse
	resp, err := a.c.requestAs(ctx, "").
		SetQueryParam("grant_type", grant).
		SetBody(body).
		SetResult(&out).
		Post("/auth/v1/token")
	if err != nil {
		return nil, fmt.Errorf("auth token request: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}
	return a.session(&out), nil
}

func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error) {
	return a.token(ctx, "password", credentials{Email: email, Password: password})
}

func (a *Auth) SignUp(ctx context.Context, email, password string) (*backend.Session, error) {
	var out tokenResponse
	resp, err := a.c.requestAs(ctx, "").
		SetBody(credentials{Email: email, Password: password}).
		SetResult(&out).
		Post("/auth/v1/signup")
	if err != nil {
		return nil, fmt.Errorf("auth signup request: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}
	return a.session(&out), nil
}

func (a *Auth) SignOut(ctx context.Context, s *backend.Session) error {
	if s == nil || s.AccessToken == "" {
		return nil
	}
	resp, err := a.c.requestAs(ctx, s.AccessToken).Post("/auth/v1/logout")
	if err != nil {
		return fmt.Errorf("auth logout request: %w", err)
	}
	// an already-invalid token means the session is over anyway
	if resp.IsError() && resp.StatusCode() != http.StatusUnauthorized && resp.StatusCode() != http.StatusNotFound {
		return apiError(resp)
	}
	return nil
}

func (a *Auth) GetSession(ctx context.Context, s *backend.Session) (*backend.Session, error) {
	if s == nil || (s.AccessToken == "" && s.RefreshToken == "") {
		return nil, nil
	}
	if s.AccessToken != "" && !s.Expired(a.c.now()) {
		var u userJSON
		resp, err := a.c.requestAs(ctx, s.AccessToken).SetResult(&u).Get("/auth/v1/user")
		if err != nil {
			return nil, fmt.Errorf("auth user request: %w", err)
		}
		if !resp.IsError() {
			out := *s
			out.User = u.identity()
			return &out, nil
		}
		if resp.StatusCode() != http.StatusUnauthorized && resp.StatusCode() != http.StatusForbidden {
			return nil, apiError(resp)
		}
	}
	if s.RefreshToken == "" {
		return nil, nil
	}
	fresh, err := a.token(ctx, "refresh_token", map[string]string{"refresh_token": s.RefreshToken})
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			return nil, nil
		}
		return nil, err
	}
	return fresh, nil
}
