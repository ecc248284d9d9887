package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/modernplatform/modern-platform/internal/content"
	"github.com/modernplatform/modern-platform/internal/models"
	"github.com/modernplatform/modern-platform/internal/validation"
	"github.com/modernplatform/modern-platform/pkg/middleware"
	"github.com/modernplatform/modern-platform/web"
)

func (h *Handler) ContactForm(c *gin.Context) {
	page := &web.Page{Title: "Contact"}
	if u := middleware.StoreFrom(c).Snapshot().User; u != nil {
		page.Form = map[string]string{"name": u.FullName, "email": u.Email}
	}
	h.render(c, http.StatusOK, "contact", page)
}

func (h *Handler) SubmitContact(c *gin.Context) {
	var m models.ContactMessage
	_ = c.ShouldBind(&m)
	page := &web.Page{Title: "Contact", Form: map[string]string{
		"name": m.Name, "email": m.Email, "subject": m.Subject, "message": m.Message,
	}}

	ctx := middleware.StoreFrom(c).Context(c.Request.Context())
	if err := h.content.SubmitContact(ctx, m); err != nil {
		var verrs validation.Errors
		if errors.As(err, &verrs) {
			page.Errors = verrs
			h.render(c, http.StatusUnprocessableEntity, "contact", page)
			return
		}
		page.Error = content.Message(err)
		h.render(c, http.StatusBadGateway, "contact", page)
		return
	}
	h.render(c, http.StatusOK, "contact", &web.Page{Title: "Contact", Sent: true})
}
