// Package sessions stores server-side sessions addressed by opaque tokens:
// refresh sessions of the local backend and browser sessions of the web layer.
package sessions

import (
	"time"

	"github.com/modernplatform/modern-platform/internal/backend"
)

// Session is a persisted session. Backend is set only for browser sessions,
// where it holds the backend tokens the browser acts with.
type Session struct {
	Token         string           `bson:"token" json:"token"`
	Sub           string           `bson:"sub" json:"sub"`
	Email         string           `bson:"email,omitempty" json:"email,omitempty"`
	UserCreatedAt time.Time        `bson:"userCreatedAt,omitempty" json:"userCreatedAt,omitzero"`
	Backend       *backend.Session `bson:"backend,omitempty" json:"backend,omitempty"`
	ExpiresAt     time.Time        `bson:"expiresAt" json:"expiresAt"`
	CreatedAt     time.Time        `bson:"createdAt" json:"createdAt"`
}

// Identity is the account the session belongs to.
func (s *Session) Identity() backend.Identity {
	return backend.Identity{ID: s.Sub, Email: s.Email, CreatedAt: s.UserCreatedAt}
}
