package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modernplatform/modern-platform/internal/backend"
	"github.com/modernplatform/modern-platform/internal/backend/local"
	"github.com/modernplatform/modern-platform/internal/blobstore"
	"github.com/modernplatform/modern-platform/internal/content"
	"github.com/modernplatform/modern-platform/internal/rowstore"
	"github.com/modernplatform/modern-platform/internal/sessions"
	"github.com/modernplatform/modern-platform/internal/tokens"
	"github.com/modernplatform/modern-platform/internal/upload"
	"github.com/modernplatform/modern-platform/internal/users"
	"github.com/modernplatform/modern-platform/pkg/middleware"
	"github.com/modernplatform/modern-platform/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testApp struct {
	engine *gin.Engine
	client *backend.Client
	blobs  *blobstore.MemoryStore
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rows := rowstore.NewMemoryStore()
	accounts := users.NewService(users.NewStoreAccountRepository(rows))
	accounts.SetCost(bcrypt.MinCost)
	blobs := blobstore.NewMemoryStore("")
	client := local.New(local.Deps{
		Rows:      rows,
		Blobs:     blobs,
		Accounts:  accounts,
		Issuer:    tokens.NewIssuer("handlers-test-secret-0123456789abc", time.Minute),
		Refresh:   sessions.NewService(sessions.NewMemoryRepository(), time.Hour),
		Blacklist: sessions.NewMemoryBlacklist(),
	})
	mgr := &middleware.SessionManager{
		Sessions: sessions.NewService(sessions.NewMemoryRepository(), time.Hour),
		Client:   client,
		Cookie:   "sid",
		TTL:      time.Hour,
	}
	pages, err := web.NewRenderer()
	require.NoError(t, err)

	h := New(Deps{
		Content:     content.NewService(client.Rows),
		Sessions:    mgr,
		Avatars:     upload.New(client.Blobs, blobstore.BucketAvatars),
		PostImages:  upload.New(client.Blobs, blobstore.BucketPosts),
		Pages:       pages,
		MemoryBlobs: blobs,
	})
	r := gin.New()
	r.Use(mgr.Middleware())
	h.Register(r)
	return &testApp{engine: r, client: client, blobs: blobs}
}

func (a *testApp) do(req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func (a *testApp) postForm(path string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.do(req, cookie)
}

func (a *testApp) get(path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	return a.do(httptest.NewRequest(http.MethodGet, path, nil), cookie)
}

func cookieNamed(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// register signs up through the form and returns the session cookie.
func (a *testApp) register(t *testing.T, name, email string) *http.Cookie {
	t.Helper()
	w := a.postForm("/register", url.Values{
		"fullName": {name}, "email": {email}, "password": {"secret1"}, "confirmPassword": {"secret1"},
	}, nil)
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	require.Equal(t, "/profile", w.Header().Get("Location"))
	c := cookieNamed(w, "sid")
	require.NotNil(t, c)
	return c
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		hdr := make(map[string][]string)
		hdr["Content-Disposition"] = []string{`form-data; name="` + fileField + `"; filename="` + fileName + `"`}
		hdr["Content-Type"] = []string{contentType}
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01")

func TestGatedRoutesRedirectToLogin(t *testing.T) {
	app := newTestApp(t)
	for _, path := range []string{"/profile", "/settings"} {
		w := app.get(path, nil)
		assert.Equal(t, http.StatusFound, w.Code, path)
		assert.Equal(t, "/login", w.Header().Get("Location"), path)
	}
}

func TestUnknownRouteRedirectsHome(t *testing.T) {
	app := newTestApp(t)
	w := app.get("/no/such/page", nil)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/", w.Header().Get("Location"))

	w = app.get("/api/v1/nothing", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestPublicPagesRender(t *testing.T) {
	app := newTestApp(t)
	for _, path := range []string{"/", "/explore", "/about", "/contact", "/login", "/register"} {
		w := app.get(path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Body.String(), "Modern Platform", path)
	}
}

func TestRegisterThenProfile(t *testing.T) {
	app := newTestApp(t)
	cookie := app.register(t, "Ann Lee", "ann@example.com")

	w := app.get("/profile", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Ann Lee")
	assert.Contains(t, body, "No content yet")

	w = app.get("/api/v1/session", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"email":"ann@example.com"`)
}

func TestRegisterAlreadyRegistered(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "Ann", "ann@example.com")

	w := app.postForm("/register", url.Values{
		"fullName": {"Ann Again"}, "email": {"ann@example.com"}, "password": {"secret1"}, "confirmPassword": {"secret1"},
	}, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "This email is already registered. Please sign in instead.")
	assert.Nil(t, cookieNamed(w, "sid"))
}

// pendingAuth registers accounts that still need email confirmation.
type pendingAuth struct{ backend.Auth }

func (pendingAuth) SignUp(_ context.Context, email, _ string) (*backend.Session, error) {
	return &backend.Session{User: backend.Identity{ID: "pending-1", Email: email}}, nil
}

func TestRegisterAwaitingConfirmation(t *testing.T) {
	app := newTestApp(t)
	app.client.Auth = pendingAuth{app.client.Auth}

	w := app.postForm("/register", url.Values{
		"fullName": {"Eve"}, "email": {"eve@example.com"}, "password": {"secret1"}, "confirmPassword": {"secret1"},
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Account created. Please confirm your email, then sign in.")
	assert.Nil(t, cookieNamed(w, "sid"))
}

func TestRegisterValidation(t *testing.T) {
	app := newTestApp(t)
	w := app.postForm("/register", url.Values{
		"fullName": {""}, "email": {"not-an-email"}, "password": {"abc"}, "confirmPassword": {"abd"},
	}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Full name is required")
	assert.Contains(t, body, "Email is invalid")
	assert.Contains(t, body, "Password must be at least 6 characters")
	assert.Contains(t, body, "Passwords do not match")
}

func TestLogin(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "Ann", "ann@example.com")

	w := app.postForm("/login", url.Values{"email": {"ann@example.com"}, "password": {"wrong-pass"}}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid login credentials")

	w = app.postForm("/login", url.Values{"email": {"ann@example.com"}, "password": {"secret1"}}, nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	cookie := cookieNamed(w, "sid")
	require.NotNil(t, cookie)

	w = app.get("/login", cookie)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/profile", w.Header().Get("Location"))
}

func TestLogoutEndsSession(t *testing.T) {
	app := newTestApp(t)
	cookie := app.register(t, "Ann", "ann@example.com")

	w := app.postForm("/logout", nil, cookie)
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/", w.Header().Get("Location"))

	w = app.get("/profile", cookie)
	require.Equal(t, http.StatusFound, w.Code)
}

func TestCreatePostAndExplore(t *testing.T) {
	app := newTestApp(t)
	cookie := app.register(t, "Ann", "ann@example.com")

	w := app.postForm("/profile/posts", url.Values{"title": {"Design systems"}, "content": {"Tokens and themes"}}, cookie)
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	w = app.postForm("/profile/posts", url.Values{"title": {"Gardening"}, "content": {"Tomatoes"}}, cookie)
	require.Equal(t, http.StatusSeeOther, w.Code)

	w = app.get("/explore?q=DESIGN", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Design systems")
	assert.NotContains(t, w.Body.String(), "Gardening")
	assert.Contains(t, w.Body.String(), "Ann")

	w = app.get("/explore?q=nothing-matches", nil)
	assert.Contains(t, w.Body.String(), "No posts found. Try adjusting your search criteria.")

	w = app.get("/api/v1/posts?sort=oldest", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Posts []struct {
			Title    string `json:"title"`
			Profiles *struct {
				FullName string `json:"full_name"`
			} `json:"profiles"`
		} `json:"posts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out.Posts, 2)
	assert.Equal(t, "Design systems", out.Posts[0].Title)
	require.NotNil(t, out.Posts[0].Profiles)
	assert.Equal(t, "Ann", out.Posts[0].Profiles.FullName)
}

func TestCreatePostValidation(t *testing.T) {
	app := newTestApp(t)
	cookie := app.register(t, "Ann", "ann@example.com")

	w := app.postForm("/profile/posts", url.Values{"title": {""}, "content": {"draft kept after error"}}, cookie)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Title is required")
	assert.Contains(t, w.Body.String(), "draft kept after error")

	w = app.postForm("/profile/posts", url.Values{"title": {"t"}, "content": {"c"}, "image_url": {"https://example.com/page.html"}}, cookie)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), upload.InvalidURLMessage)
}

func TestAPIDeleteIsOwnerScoped(t *testing.T) {
	app := newTestApp(t)
	ann := app.register(t, "Ann", "ann@example.com")
	bob := app.register(t, "Bob", "bob@example.com")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts", strings.NewReader(`{"title":"Mine","content":"hands off"}`))
	req.Header.Set("Content-Type", "application/json")
	w := app.do(req, ann)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var post struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &post))
	require.NotEmpty(t, post.ID)

	w = app.do(httptest.NewRequest(http.MethodDelete, "/api/v1/posts/"+post.ID, nil), bob)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(httptest.NewRequest(http.MethodDelete, "/api/v1/posts/"+post.ID, nil), nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = app.do(httptest.NewRequest(http.MethodDelete, "/api/v1/posts/"+post.ID, nil), ann)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = app.get("/api/v1/posts", nil)
	assert.NotContains(t, w.Body.String(), "hands off")
}

func TestContactForm(t *testing.T) {
	app := newTestApp(t)

	w := app.postForm("/contact", url.Values{"email": {"x@y.z"}}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Name is required")
	assert.Contains(t, w.Body.String(), "Subject is required")
	assert.Contains(t, w.Body.String(), "Message is required")

	w = app.postForm("/contact", url.Values{
		"name": {"Ann"}, "email": {"ann@example.com"}, "subject": {"Hi"}, "message": {"Hello there"},
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Message Sent Successfully")
}

func TestThemeToggle(t *testing.T) {
	app := newTestApp(t)
	req := httptest.NewRequest(http.MethodPost, "/theme", nil)
	req.Header.Set("Referer", "http://localhost:8080/explore?q=a")
	w := app.do(req, nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/explore?q=a", w.Header().Get("Location"))
	theme := cookieNamed(w, "theme")
	require.NotNil(t, theme)
	assert.Equal(t, "dark", theme.Value)

	w = app.get("/about", theme)
	assert.Contains(t, w.Body.String(), `class="dark"`)

	req = httptest.NewRequest(http.MethodPost, "/theme", nil)
	w = app.do(req, theme)
	assert.Equal(t, "light", cookieNamed(w, "theme").Value)
}

func TestBackTo(t *testing.T) {
	assert.Equal(t, "/", backTo(""))
	assert.Equal(t, "/", backTo("http://evil.example.com//evil.example.com"))
	assert.Equal(t, "/profile", backTo("https://site.example.com/profile"))
}

var blobSrc = regexp.MustCompile(`src="(/blobs/avatars/[^"]+)"`)

func TestAvatarUpload(t *testing.T) {
	app := newTestApp(t)
	cookie := app.register(t, "Ann", "ann@example.com")

	body, ct := multipartBody(t, nil, "file", "me.png", "image/png", pngBytes)
	req := httptest.NewRequest(http.MethodPost, "/profile/avatar", body)
	req.Header.Set("Content-Type", ct)
	w := app.do(req, cookie)
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())

	w = app.get("/profile", cookie)
	m := blobSrc.FindStringSubmatch(w.Body.String())
	require.Len(t, m, 2, "avatar image should be on the profile page")

	w = app.get(m[1], nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	got, _ := io.ReadAll(w.Body)
	assert.Equal(t, pngBytes, got)
}

func TestOversizedUploadRejected(t *testing.T) {
	app := newTestApp(t)
	cookie := app.register(t, "Ann", "ann@example.com")

	big := bytes.Repeat([]byte{0}, 6<<20)
	body, ct := multipartBody(t, nil, "file", "big.png", "image/png", big)
	req := httptest.NewRequest(http.MethodPost, "/profile/posts/image", body)
	req.Header.Set("Content-Type", ct)
	w := app.do(req, cookie)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "File is larger than 5MB")
}

func TestPostImageUploadReturnsURL(t *testing.T) {
	app := newTestApp(t)
	cookie := app.register(t, "Ann", "ann@example.com")

	body, ct := multipartBody(t, nil, "file", "shot.png", "image/png", pngBytes)
	req := httptest.NewRequest(http.MethodPost, "/profile/posts/image", body)
	req.Header.Set("Content-Type", ct)
	w := app.do(req, cookie)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var out map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.True(t, strings.HasPrefix(out["url"], "/blobs/posts/"), out["url"])
	assert.True(t, strings.HasSuffix(out["url"], ".png"), out["url"])
}

func TestCreatePostWithUploadedImage(t *testing.T) {
	app := newTestApp(t)
	cookie := app.register(t, "Ann", "ann@example.com")

	body, ct := multipartBody(t, map[string]string{"title": "Photo", "content": "Look"}, "image", "p.png", "image/png", pngBytes)
	req := httptest.NewRequest(http.MethodPost, "/profile/posts", body)
	req.Header.Set("Content-Type", ct)
	w := app.do(req, cookie)
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())

	w = app.get("/explore", nil)
	assert.Regexp(t, `src="/blobs/posts/[^"]+\.png"`, w.Body.String())
}
