package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modernplatform/modern-platform/internal/backend"
	"github.com/modernplatform/modern-platform/internal/backend/local"
	"github.com/modernplatform/modern-platform/internal/sessions"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newSessionRouter(t *testing.T) (*gin.Engine, *SessionManager) {
	t.Helper()
	client, _ := local.NewMemory("middleware-test-secret-0123456789", bcrypt.MinCost)
	mgr := &SessionManager{
		Sessions: sessions.NewService(sessions.NewMemoryRepository(), time.Hour),
		Client:   client,
		Cookie:   "sid",
		TTL:      time.Hour,
	}
	g := gin.New()
	g.Use(mgr.Middleware())
	g.POST("/register", func(c *gin.Context) {
		store := StoreFrom(c)
		if err := store.SignUp(c.Request.Context(), c.Query("email"), "secret1", "Ann"); err != nil {
			c.String(http.StatusBadRequest, err.Error())
			return
		}
		require.NoError(t, mgr.Start(c, store))
		c.Status(http.StatusNoContent)
	})
	g.POST("/logout", func(c *gin.Context) {
		_ = StoreFrom(c).SignOut(c.Request.Context())
		mgr.End(c)
		c.Status(http.StatusNoContent)
	})
	me := func(c *gin.Context) { c.String(http.StatusOK, StoreFrom(c).Snapshot().User.Email) }
	g.GET("/me", RequireUser(), me)
	g.GET("/api/v1/me", RequireUser(), me)
	return g, mgr
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "sid" {
			return c
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func TestRequireUser_RedirectsAnonymous(t *testing.T) {
	g, _ := newSessionRouter(t)

	w := httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/login", w.Header().Get("Location"))

	w = httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionCookieRestoresUser(t *testing.T) {
	g, _ := newSessionRouter(t)

	w := httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/register?email=ann@example.com", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	cookie := sessionCookie(t, w)
	require.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	g.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ann@example.com", w.Body.String())
}

func TestLogoutForgetsSession(t *testing.T) {
	g, _ := newSessionRouter(t)

	w := httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/register?email=bob@example.com", nil))
	cookie := sessionCookie(t, w)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	g.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, -1, sessionCookie(t, w).MaxAge)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	g.ServeHTTP(w, req)
	require.Equal(t, http.StatusFound, w.Code)
}

// downRows fails every read, like a row store that is briefly unreachable.
type downRows struct{ backend.Rows }

func (downRows) Select(context.Context, string, backend.Query, any) error {
	return errors.New("dial tcp: connection refused")
}

func TestRestoreFailureKeepsBrowserSession(t *testing.T) {
	g, mgr := newSessionRouter(t)

	w := httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/register?email=dee@example.com", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	cookie := sessionCookie(t, w)

	healthy := mgr.Client.Rows
	mgr.Client.Rows = downRows{healthy}
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	g.ServeHTTP(w, req)
	require.Equal(t, http.StatusFound, w.Code)
	for _, c := range w.Result().Cookies() {
		require.NotEqual(t, "sid", c.Name, "cookie must survive a failed restore")
	}

	mgr.Client.Rows = healthy
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	g.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "dee@example.com", w.Body.String())
}

func TestBearerTokenRestoresUser(t *testing.T) {
	g, mgr := newSessionRouter(t)
	sess, err := mgr.Client.Auth.SignUp(context.Background(), "cy@example.com", "secret1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "cy@example.com", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	g.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBearer(t *testing.T) {
	require.Equal(t, "abc", bearer("Bearer abc"))
	require.Equal(t, "abc", bearer("bearer abc"))
	require.Equal(t, "", bearer("Basic abc"))
	require.Equal(t, "", bearer("Bearer "))
}
