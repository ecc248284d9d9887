package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/modernplatform/modern-platform/internal/backend"
	"github.com/modernplatform/modern-platform/internal/content"
	"github.com/modernplatform/modern-platform/internal/feed"
	"github.com/modernplatform/modern-platform/internal/models"
	"github.com/modernplatform/modern-platform/internal/validation"
	"github.com/modernplatform/modern-platform/pkg/middleware"
)

// APISession reports the signed-in user, or null.
func (h *Handler) APISession(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": middleware.StoreFrom(c).Snapshot().User})
}

// APIListPosts returns all posts with authors, filtered like the explore page.
func (h *Handler) APIListPosts(c *gin.Context) {
	posts, err := h.content.ListAllPosts(middleware.StoreFrom(c).Context(c.Request.Context()))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": content.Message(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": feed.Apply(posts, queryFrom(c), h.now())})
}

func (h *Handler) APIListUserPosts(c *gin.Context) {
	posts, err := h.content.ListPostsByOwner(middleware.StoreFrom(c).Context(c.Request.Context()), c.Param("id"))
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": content.Message(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (h *Handler) APICreatePost(c *gin.Context) {
	var np models.NewPost
	if err := c.ShouldBindJSON(&np); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	store := middleware.StoreFrom(c)
	post, err := h.content.CreatePost(store.Context(c.Request.Context()), store.Snapshot().User.ID, np)
	if err != nil {
		var verrs validation.Errors
		if errors.As(err, &verrs) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": content.Message(err), "fields": verrs})
			return
		}
		c.JSON(statusOf(err), gin.H{"error": content.Message(err)})
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *Handler) APIDeletePost(c *gin.Context) {
	store := middleware.StoreFrom(c)
	if err := h.content.DeletePost(store.Context(c.Request.Context()), c.Param("id")); err != nil {
		c.JSON(statusOf(err), gin.H{"error": content.Message(err)})
		return
	}
	c.Status(http.StatusNoContent)
}

// statusOf maps content and backend errors onto HTTP statuses.
func statusOf(err error) int {
	switch {
	case errors.Is(err, content.ErrNotAuthenticated), errors.Is(err, backend.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, backend.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, backend.ErrNotFound), errors.Is(err, content.ErrProfileNotFound):
		return http.StatusNotFound
	case errors.Is(err, backend.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}
