// Package backend defines the surface the web front-end consumes from its
// backend service: password authentication with sessions, row storage with
// equality filters and ordering, and blob storage with public URLs.
//
// Two implementations exist: backend/hosted talks to a Supabase-compatible
// service over HTTP, backend/local runs the same surface in-process.
package backend

import (
	"context"
	"io"
	"time"
)

// Tables used by the front-end.
const (
	TableProfiles        = "profiles"
	TablePosts           = "posts"
	TableContactMessages = "contact_messages"
)

// Identity is the authenticated account as issued by the auth system.
type Identity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is an authenticated backend session.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         Identity  `json:"user"`
}

// Expired reports whether the access token is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Auth is the password authentication surface.
type Auth interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	// SignUp registers a new account. The returned session may carry an empty
	// access token when the backend requires email confirmation first.
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context, s *Session) error
	// GetSession validates a previously issued session, refreshing it when the
	// access token expired. Returns nil, nil when there is no usable session.
	GetSession(ctx context.Context, s *Session) (*Session, error)
}

// Order sorts a selection by one column.
type Order struct {
	Column string
	Desc   bool
}

// Embed joins a related table by foreign key: rows of Table whose "id" equals
// the selected row's Column are attached under As.
type Embed struct {
	Table   string
	Column  string
	As      string
	Columns []string
}

// Query describes a selection. Eq holds equality filters.
type Query struct {
	Columns []string
	Eq      map[string]string
	Order   *Order
	Embed   *Embed
	Limit   int
}

// Rows is the row-oriented data store. dest arguments are pointers decoded
// through the json tags of the target type.
type Rows interface {
	// Select decodes the matching rows into dest, a pointer to a slice.
	Select(ctx context.Context, table string, q Query, dest any) error
	// Insert stores row and decodes the stored representation into dest when
	// dest is non-nil.
	Insert(ctx context.Context, table string, row any, dest any) error
	// Update applies patch to matching rows. Returns ErrNotFound when no
	// row visible to the caller matched.
	Update(ctx context.Context, table string, eq map[string]string, patch any) error
	// Delete removes matching rows. Returns ErrNotFound when no row visible
	// to the caller matched.
	Delete(ctx context.Context, table string, eq map[string]string) error
}

// Blobs is the file storage surface.
type Blobs interface {
	// Upload stores body under name in bucket and returns the stored path.
	Upload(ctx context.Context, bucket, name string, body io.Reader, size int64, contentType string) (string, error)
	PublicURL(bucket, path string) string
}

// Client bundles the three backend surfaces.
type Client struct {
	Auth  Auth
	Rows  Rows
	Blobs Blobs
}
