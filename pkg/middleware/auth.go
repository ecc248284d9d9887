package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modernplatform/modern-platform/internal/authstore"
	"github.com/modernplatform/modern-platform/internal/backend"
	"github.com/modernplatform/modern-platform/internal/sessions"
	"github.com/modernplatform/modern-platform/pkg/logger"
)

// Context keys set by SessionManager.Middleware.
const (
	ContextStore  = "authstore"
	ContextUserID = "user_id"
	contextToken  = "session_token"
)

// SessionManager binds browser sessions, kept server-side and addressed by an
// HTTP-only cookie, to a per-request authstore.Store.
type SessionManager struct {
	Sessions *sessions.Service
	Client   *backend.Client
	Cookie   string
	TTL      time.Duration
	Secure   bool
}

// Middleware restores the caller's session into a fresh authstore.Store.
// API clients may instead send the backend access token as a Bearer header.
func (m *SessionManager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		store := authstore.New(m.Client)

		var saved *backend.Session
		var browser *sessions.Session
		if tok, err := c.Cookie(m.Cookie); err == nil && tok != "" {
			s, err := m.Sessions.Validate(ctx, tok)
			if err != nil {
				logger.Warnf("load browser session: %v", err)
			}
			if s != nil {
				browser = s
				saved = s.Backend
				c.Set(contextToken, tok)
			}
		} else if raw := bearer(c.GetHeader("Authorization")); raw != "" {
			saved = &backend.Session{AccessToken: raw}
		}

		restoreErr := store.RestoreSession(ctx, saved)
		if restoreErr != nil {
			logger.Warnf("restore session: %v", restoreErr)
		}
		current := store.Session()

		// A failed restore only signs out this request; the browser session
		// is dropped once the backend says it is gone.
		if browser != nil && restoreErr == nil {
			switch {
			case current == nil:
				_ = m.Sessions.Revoke(ctx, browser.Token)
				m.clearCookie(c)
			case browser.Backend == nil || current.AccessToken != browser.Backend.AccessToken:
				browser.Backend = current
				if err := m.Sessions.Update(ctx, browser); err != nil {
					logger.Warnf("persist refreshed session: %v", err)
				}
			}
		}

		c.Set(ContextStore, store)
		if u := store.Snapshot().User; u != nil {
			c.Set(ContextUserID, u.ID)
		}
		c.Next()
	}
}

func bearer(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// Start persists the store's backend session for the browser after sign-in.
func (m *SessionManager) Start(c *gin.Context, store *authstore.Store) error {
	sess := store.Session()
	if sess == nil {
		return nil
	}
	if old := c.GetString(contextToken); old != "" {
		_ = m.Sessions.Revoke(c.Request.Context(), old)
	}
	tok, err := m.Sessions.CreateSession(c.Request.Context(), &sessions.Session{
		Sub:           sess.User.ID,
		Email:         sess.User.Email,
		UserCreatedAt: sess.User.CreatedAt,
		Backend:       sess,
	})
	if err != nil {
		return err
	}
	c.Set(contextToken, tok)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.Cookie, tok, int(m.TTL.Seconds()), "/", "", m.Secure, true)
	return nil
}

// End forgets the browser session.
func (m *SessionManager) End(c *gin.Context) {
	if tok := c.GetString(contextToken); tok != "" {
		if err := m.Sessions.Revoke(c.Request.Context(), tok); err != nil {
			logger.Warnf("revoke browser session: %v", err)
		}
	}
	m.clearCookie(c)
}

func (m *SessionManager) clearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.Cookie, "", -1, "/", "", m.Secure, true)
}

// StoreFrom returns the request's authstore.Store. Handlers outside the
// session middleware get a signed-out store.
func StoreFrom(c *gin.Context) *authstore.Store {
	if v, ok := c.Get(ContextStore); ok {
		if s, ok := v.(*authstore.Store); ok {
			return s
		}
	}
	return authstore.New(nil)
}

// RequireUser redirects anonymous visitors to /login, or answers 401 under /api.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if StoreFrom(c).Snapshot().User != nil {
			c.Next()
			return
		}
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Redirect(http.StatusFound, "/login")
		c.Abort()
	}
}

// RequestLogger writes one structured log line per served request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		logger.Request(c.Request.Method, path, c.Writer.Status(), time.Since(start).Milliseconds(), c.ClientIP())
	}
}
