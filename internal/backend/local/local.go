// Package local runs the backend surface in-process: password accounts,
// JWT access tokens with refresh sessions, owner-scoped rows and blobs.
package local

import (
	"context"
	"fmt"

	"github.com/modernplatform/modern-platform/internal/backend"
	"github.com/modernplatform/modern-platform/internal/rowstore"
	"github.com/modernplatform/modern-platform/internal/sessions"
	"github.com/modernplatform/modern-platform/internal/tokens"
	"github.com/modernplatform/modern-platform/internal/users"
)

// Deps are the building blocks of the local backend.
type Deps struct {
	Rows      rowstore.Store
	Blobs     backend.Blobs
	Accounts  *users.Service
	Issuer    *tokens.Issuer
	Refresh   *sessions.Service
	Blacklist sessions.Blacklist
}

// New assembles a backend.Client from deps.
func New(d Deps) *backend.Client {
	v := &verifier{issuer: d.Issuer, blacklist: d.Blacklist}
	return &backend.Client{
		Auth:  &Auth{accounts: d.Accounts, issuer: d.Issuer, refresh: d.Refresh, verifier: v},
		Rows:  &Rows{store: d.Rows, verifier: v},
		Blobs: &Blobs{inner: d.Blobs, verifier: v},
	}
}

// verifier turns the access token carried by a context into claims.
type verifier struct {
	issuer    *tokens.Issuer
	blacklist sessions.Blacklist
}

// claims returns nil, nil for anonymous callers.
func (v *verifier) claims(ctx context.Context, raw string) (*tokens.Claims, error) {
	if raw == "" {
		return nil, nil
	}
	c, err := v.issuer.ParseAccessToken(raw)
	if err != nil {
		return nil, &backend.APIError{Kind: backend.ErrUnauthorized, Status: 401, Message: "invalid JWT"}
	}
	if v.blacklist != nil {
		revoked, err := v.blacklist.Contains(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("check token blacklist: %w", err)
		}
		if revoked {
			return nil, &backend.APIError{Kind: backend.ErrUnauthorized, Status: 401, Message: "session has been revoked"}
		}
	}
	return c, nil
}

// subject returns the caller's account id, or "" when anonymous.
func (v *verifier) subject(ctx context.Context) (string, error) {
	c, err := v.claims(ctx, backend.AccessToken(ctx))
	if err != nil || c == nil {
		return "", err
	}
	return c.Subject, nil
}
