// Package handlers serves the HTML pages, the JSON API and the ops endpoints.
package handlers

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modernplatform/modern-platform/internal/blobstore"
	"github.com/modernplatform/modern-platform/internal/content"
	"github.com/modernplatform/modern-platform/internal/upload"
	"github.com/modernplatform/modern-platform/pkg/logger"
	"github.com/modernplatform/modern-platform/pkg/middleware"
	"github.com/modernplatform/modern-platform/web"
)

const themeCookie = "theme"

// Deps are the collaborators of Handler.
type Deps struct {
	Content    *content.Service
	Sessions   *middleware.SessionManager
	Avatars    *upload.Uploader
	PostImages *upload.Uploader
	Pages      *web.Renderer
	// MemoryBlobs is served under /blobs when the blob store lives in memory.
	MemoryBlobs *blobstore.MemoryStore
	// RateLimit guards form submissions and the API. Optional.
	RateLimit gin.HandlerFunc
	Now       func() time.Time
}

type Handler struct {
	content    *content.Service
	sessions   *middleware.SessionManager
	avatars    *upload.Uploader
	postImages *upload.Uploader
	pages      *web.Renderer
	blobs      *blobstore.MemoryStore
	limit      gin.HandlerFunc
	now        func() time.Time
}

func New(d Deps) *Handler {
	h := &Handler{
		content:    d.Content,
		sessions:   d.Sessions,
		avatars:    d.Avatars,
		postImages: d.PostImages,
		pages:      d.Pages,
		blobs:      d.MemoryBlobs,
		limit:      d.RateLimit,
		now:        d.Now,
	}
	if h.limit == nil {
		h.limit = func(c *gin.Context) { c.Next() }
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// Register mounts every page and API route on r. The session middleware must
// already be installed.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/", h.Home)
	r.GET("/explore", h.Explore)
	r.GET("/about", h.About)
	r.GET("/contact", h.ContactForm)
	r.POST("/contact", h.limit, h.SubmitContact)
	r.GET("/login", h.LoginForm)
	r.POST("/login", h.limit, h.Login)
	r.GET("/register", h.RegisterForm)
	r.POST("/register", h.limit, h.SubmitRegister)
	r.POST("/logout", h.Logout)
	r.POST("/theme", h.ToggleTheme)

	gated := r.Group("/", middleware.RequireUser())
	gated.GET("/profile", h.Profile)
	gated.POST("/profile", h.SaveProfile)
	gated.POST("/profile/avatar", limitBody(h.avatars), h.UploadAvatar)
	gated.POST("/profile/posts", limitBody(h.postImages), h.CreatePost)
	gated.POST("/profile/posts/image", limitBody(h.postImages), h.UploadPostImage)
	gated.POST("/profile/posts/:id/delete", h.DeletePost)
	gated.GET("/settings", h.Settings)

	api := r.Group("/api/v1", h.limit)
	api.GET("/session", h.APISession)
	api.GET("/posts", h.APIListPosts)
	api.GET("/users/:id/posts", h.APIListUserPosts)
	api.POST("/posts", middleware.RequireUser(), h.APICreatePost)
	api.DELETE("/posts/:id", middleware.RequireUser(), h.APIDeletePost)

	if h.blobs != nil {
		r.GET("/blobs/:bucket/*path", h.ServeBlob)
	}

	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.Redirect(http.StatusFound, "/")
	})
}

func theme(c *gin.Context) string {
	if v, err := c.Cookie(themeCookie); err == nil && v == "dark" {
		return "dark"
	}
	return "light"
}

// render fills the shared page fields and writes the named page.
func (h *Handler) render(c *gin.Context, status int, name string, p *web.Page) {
	if p.User == nil {
		p.User = middleware.StoreFrom(c).Snapshot().User
	}
	p.Path = c.Request.URL.Path
	p.Theme = theme(c)
	var buf bytes.Buffer
	if err := h.pages.Render(&buf, name, p); err != nil {
		logger.Errorf("%v", err)
		c.String(http.StatusInternalServerError, "Something went wrong. Please try again later.")
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

// seeOther redirects after a successful form post.
func seeOther(c *gin.Context, to string) {
	c.Redirect(http.StatusSeeOther, to)
}
