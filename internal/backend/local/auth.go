package local

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modernplatform/modern-platform/internal/backend"
	"github.com/modernplatform/modern-platform/internal/sessions"
	"github.com/modernplatform/modern-platform/internal/tokens"
	"github.com/modernplatform/modern-platform/internal/users"
	"github.com/modernplatform/modern-platform/pkg/logger"
)

// Auth implements backend.Auth over local accounts.
type Auth struct {
	accounts *users.Service
	issuer   *tokens.Issuer
	refresh  *sessions.Service
	verifier *verifier
}

func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error) {
	acc, err := a.accounts.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			return nil, &backend.APIError{Kind: backend.ErrInvalidCredentials, Status: 400, Message: "Invalid login credentials"}
		}
		return nil, err
	}
	return a.issue(ctx, identityOf(acc))
}

func (a *Auth) SignUp(ctx context.Context, email, password string) (*backend.Session, error) {
	acc, err := a.accounts.Register(ctx, email, password)
	if err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			return nil, &backend.APIError{Kind: backend.ErrAlreadyRegistered, Status: 422, Message: "User already registered"}
		}
		return nil, err
	}
	logger.Infof("local account registered: %s", acc.ID)
	return a.issue(ctx, identityOf(acc))
}

// SignOut revokes the access token until its expiry and drops the refresh session.
func (a *Auth) SignOut(ctx context.Context, s *backend.Session) error {
	if s == nil {
		return nil
	}
	if c, err := a.issuer.ParseAccessToken(s.AccessToken); err == nil && a.verifier.blacklist != nil {
		ttl := time.Until(c.ExpiresAt.Time)
		if err := a.verifier.blacklist.Add(ctx, c.ID, ttl); err != nil {
			return fmt.Errorf("revoke access token: %w", err)
		}
	}
	if s.RefreshToken != "" {
		if err := a.refresh.Revoke(ctx, s.RefreshToken); err != nil {
			return fmt.Errorf("revoke refresh session: %w", err)
		}
	}
	return nil
}

func (a *Auth) GetSession(ctx context.Context, s *backend.Session) (*backend.Session, error) {
	if s == nil || (s.AccessToken == "" && s.RefreshToken == "") {
		return nil, nil
	}
	c, err := a.verifier.claims(ctx, s.AccessToken)
	if err == nil && c != nil {
		out := *s
		out.User = c.Identity()
		return &out, nil
	}
	var apiErr *backend.APIError
	if err != nil && !errors.As(err, &apiErr) {
		return nil, err
	}
	return a.refreshSession(ctx, s)
}

// refreshSession rotates the refresh token and issues a new access token.
func (a *Auth) refreshSession(ctx context.Context, s *backend.Session) (*backend.Session, error) {
	rs, err := a.refresh.Validate(ctx, s.RefreshToken)
	if err != nil {
		return nil, err
	}
	if rs == nil {
		return nil, nil
	}
	if err := a.refresh.Revoke(ctx, s.RefreshToken); err != nil {
		return nil, fmt.Errorf("rotate refresh session: %w", err)
	}
	logger.Debugf("local session refreshed for %s", rs.Sub)
	return a.issue(ctx, rs.Identity())
}

func (a *Auth) issue(ctx context.Context, id backend.Identity) (*backend.Session, error) {
	access, exp, err := a.issuer.GenerateAccessToken(id)
	if err != nil {
		return nil, err
	}
	refresh, err := a.refresh.CreateSession(ctx, &sessions.Session{Sub: id.ID, Email: id.Email, UserCreatedAt: id.CreatedAt})
	if err != nil {
		return nil, fmt.Errorf("create refresh session: %w", err)
	}
	return &backend.Session{AccessToken: access, RefreshToken: refresh, ExpiresAt: exp, User: id}, nil
}

func identityOf(a *users.Account) backend.Identity {
	return backend.Identity{ID: a.ID, Email: a.Email, CreatedAt: a.CreatedAt}
}
