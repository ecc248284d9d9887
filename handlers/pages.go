package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/modernplatform/modern-platform/internal/content"
	"github.com/modernplatform/modern-platform/internal/feed"
	"github.com/modernplatform/modern-platform/pkg/logger"
	"github.com/modernplatform/modern-platform/pkg/middleware"
	"github.com/modernplatform/modern-platform/web"
)

const homePostCount = 3

func (h *Handler) Home(c *gin.Context) {
	ctx := middleware.StoreFrom(c).Context(c.Request.Context())
	posts, err := h.content.ListAllPosts(ctx)
	if err != nil {
		logger.Warnf("home: %v", err)
	}
	if len(posts) > homePostCount {
		posts = posts[:homePostCount]
	}
	h.render(c, http.StatusOK, "home", &web.Page{Posts: posts})
}

// Explore lists every post filtered by the q, date and sort query parameters.
func (h *Handler) Explore(c *gin.Context) {
	q := queryFrom(c)
	page := &web.Page{Title: "Explore", Query: q}
	posts, err := h.content.ListAllPosts(middleware.StoreFrom(c).Context(c.Request.Context()))
	if err != nil {
		page.Error = content.Message(err)
		h.render(c, http.StatusBadGateway, "explore", page)
		return
	}
	page.Posts = feed.Apply(posts, q, h.now())
	h.render(c, http.StatusOK, "explore", page)
}

func queryFrom(c *gin.Context) feed.Query {
	return feed.Query{
		Search: strings.TrimSpace(c.Query("q")),
		Date:   feed.ParseDate(c.Query("date")),
		Sort:   feed.ParseSort(c.Query("sort")),
	}
}

func (h *Handler) About(c *gin.Context) {
	h.render(c, http.StatusOK, "about", &web.Page{Title: "About"})
}

func (h *Handler) Settings(c *gin.Context) {
	h.render(c, http.StatusOK, "settings", &web.Page{Title: "Settings"})
}

// ToggleTheme flips the theme cookie and returns to the referring page.
func (h *Handler) ToggleTheme(c *gin.Context) {
	next := "dark"
	if theme(c) == "dark" {
		next = "light"
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(themeCookie, next, 365*24*60*60, "/", "", false, false)
	seeOther(c, backTo(c.GetHeader("Referer")))
}

// backTo keeps only the path of a referrer so redirects stay on this site.
func backTo(referer string) string {
	u, err := url.Parse(referer)
	if err != nil || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return "/"
	}
	if u.RawQuery != "" {
		return u.Path + "?" + u.RawQuery
	}
	return u.Path
}
