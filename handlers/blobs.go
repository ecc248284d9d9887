package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ServeBlob serves objects of the in-memory blob store at their public URLs.
func (h *Handler) ServeBlob(c *gin.Context) {
	obj, ok := h.blobs.Get(c.Param("bucket"), strings.TrimPrefix(c.Param("path"), "/"))
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Data(http.StatusOK, obj.ContentType, obj.Data)
}
