package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/modernplatform/modern-platform/internal/backend"
	"github.com/modernplatform/modern-platform/internal/validation"
	"github.com/modernplatform/modern-platform/pkg/logger"
	"github.com/modernplatform/modern-platform/pkg/middleware"
	"github.com/modernplatform/modern-platform/web"
)

func (h *Handler) LoginForm(c *gin.Context) {
	if middleware.StoreFrom(c).Snapshot().User != nil {
		c.Redirect(http.StatusFound, "/profile")
		return
	}
	h.render(c, http.StatusOK, "login", &web.Page{Title: "Sign in"})
}

// Login signs in with email and password and starts a browser session.
func (h *Handler) Login(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")
	page := &web.Page{Title: "Sign in", Form: map[string]string{"email": email}}

	if errs := validation.Login(email, password); len(errs) > 0 {
		page.Errors = errs
		h.render(c, http.StatusUnprocessableEntity, "login", page)
		return
	}
	store := middleware.StoreFrom(c)
	if err := store.SignIn(c.Request.Context(), email, password); err != nil {
		page.Error = store.Snapshot().ErrorMessage()
		status := http.StatusBadGateway
		if errors.Is(err, backend.ErrInvalidCredentials) {
			status = http.StatusUnauthorized
		}
		h.render(c, status, "login", page)
		return
	}
	if err := h.sessions.Start(c, store); err != nil {
		logger.Errorf("start browser session: %v", err)
		page.Error = "Unable to start your session. Please try again."
		h.render(c, http.StatusInternalServerError, "login", page)
		return
	}
	seeOther(c, "/profile")
}

func (h *Handler) RegisterForm(c *gin.Context) {
	h.render(c, http.StatusOK, "register", &web.Page{Title: "Create account"})
}

// SubmitRegister creates an account with its profile. A taken email renders the
// "sign in instead" hint.
func (h *Handler) SubmitRegister(c *gin.Context) {
	fullName := strings.TrimSpace(c.PostForm("fullName"))
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")
	page := &web.Page{Title: "Create account", Form: map[string]string{"fullName": fullName, "email": email}}

	if errs := validation.Register(fullName, email, password, c.PostForm("confirmPassword")); len(errs) > 0 {
		page.Errors = errs
		h.render(c, http.StatusUnprocessableEntity, "register", page)
		return
	}
	store := middleware.StoreFrom(c)
	if err := store.SignUp(c.Request.Context(), email, password, fullName); err != nil {
		if errors.Is(err, backend.ErrAlreadyRegistered) {
			page.AlreadyRegistered = true
			h.render(c, http.StatusConflict, "register", page)
			return
		}
		page.Error = store.Snapshot().ErrorMessage()
		h.render(c, http.StatusBadGateway, "register", page)
		return
	}
	if sess := store.Session(); sess == nil || sess.AccessToken == "" {
		h.render(c, http.StatusOK, "login", &web.Page{
			Title:  "Sign in",
			Notice: "Account created. Please confirm your email, then sign in.",
			Form:   map[string]string{"email": email},
		})
		return
	}
	if err := h.sessions.Start(c, store); err != nil {
		logger.Errorf("start browser session: %v", err)
		seeOther(c, "/login")
		return
	}
	seeOther(c, "/profile")
}

// Logout ends the backend session and forgets the browser session.
func (h *Handler) Logout(c *gin.Context) {
	if err := middleware.StoreFrom(c).SignOut(c.Request.Context()); err != nil {
		logger.Warnf("logout: %v", err)
	}
	h.sessions.End(c)
	seeOther(c, "/")
}
