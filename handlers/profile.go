package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/modernplatform/modern-platform/internal/content"
	"github.com/modernplatform/modern-platform/internal/models"
	"github.com/modernplatform/modern-platform/internal/upload"
	"github.com/modernplatform/modern-platform/internal/validation"
	"github.com/modernplatform/modern-platform/pkg/logger"
	"github.com/modernplatform/modern-platform/pkg/middleware"
	"github.com/modernplatform/modern-platform/web"
)

const fetchPostsFailed = "Failed to fetch posts. Please try again later."

// renderProfile loads the caller's posts into page and renders the profile.
func (h *Handler) renderProfile(c *gin.Context, status int, page *web.Page) {
	store := middleware.StoreFrom(c)
	user := store.Snapshot().User
	page.Title = "Profile"
	page.User = user
	page.MaxUploadMB = h.avatars.Limit() >> 20
	if page.Form == nil {
		page.Form = map[string]string{}
	}
	if _, ok := page.Form["full_name"]; !ok {
		page.Form["full_name"] = user.FullName
		page.Form["avatar_url"] = user.AvatarURL
	}
	posts, err := h.content.ListPostsByOwner(store.Context(c.Request.Context()), user.ID)
	if err != nil {
		logger.Warnf("profile posts for %s: %v", user.ID, err)
		if page.Error == "" {
			page.Error = fetchPostsFailed
		}
	}
	page.OwnPosts = posts
	h.render(c, status, "profile", page)
}

func (h *Handler) Profile(c *gin.Context) {
	h.renderProfile(c, http.StatusOK, &web.Page{Editing: c.Query("edit") != ""})
}

// SaveProfile updates the display name and avatar link.
func (h *Handler) SaveProfile(c *gin.Context) {
	store := middleware.StoreFrom(c)
	user := *store.Snapshot().User
	fullName := strings.TrimSpace(c.PostForm("full_name"))
	avatar := strings.TrimSpace(c.PostForm("avatar_url"))
	page := &web.Page{Editing: true, Form: map[string]string{"full_name": fullName, "avatar_url": avatar}}

	if avatar != "" && avatar != user.AvatarURL {
		var msg string
		h.avatars.AcceptURL(avatar, upload.Callbacks{OnError: func(m string) { msg = m }})
		if msg != "" {
			page.Error = msg
			h.renderProfile(c, http.StatusUnprocessableEntity, page)
			return
		}
	}
	if err := h.saveProfile(c, fullName, avatar); err != nil {
		page.Error = content.Message(err)
		h.renderProfile(c, http.StatusBadGateway, page)
		return
	}
	seeOther(c, "/profile")
}

func (h *Handler) saveProfile(c *gin.Context, fullName, avatar string) error {
	store := middleware.StoreFrom(c)
	user := *store.Snapshot().User
	edit := models.ProfileEdit{FullName: fullName}
	if avatar != "" {
		edit.AvatarURL = &avatar
	}
	if err := h.content.SaveProfile(store.Context(c.Request.Context()), user.ID, edit); err != nil {
		return err
	}
	user.FullName = strings.TrimSpace(fullName)
	user.AvatarURL = avatar
	store.UpdateProfile(user)
	return nil
}

// UploadAvatar stores an uploaded image and makes it the profile picture.
func (h *Handler) UploadAvatar(c *gin.Context) {
	user := middleware.StoreFrom(c).Snapshot().User
	url, msg, ok := acceptUpload(c, h.avatars, "file")
	if !ok {
		msg = "Please choose an image to upload"
	}
	if msg != "" {
		h.renderProfile(c, http.StatusUnprocessableEntity, &web.Page{Editing: true, Error: msg})
		return
	}
	if err := h.saveProfile(c, user.FullName, url); err != nil {
		h.renderProfile(c, http.StatusBadGateway, &web.Page{Editing: true, Error: content.Message(err)})
		return
	}
	seeOther(c, "/profile")
}

// CreatePost publishes a post. The image is either uploaded with the form
// or given as a link.
func (h *Handler) CreatePost(c *gin.Context) {
	store := middleware.StoreFrom(c)
	np := models.NewPost{
		Title:    c.PostForm("title"),
		Content:  c.PostForm("content"),
		ImageURL: c.PostForm("image_url"),
	}
	page := &web.Page{Form: map[string]string{"title": np.Title, "content": np.Content, "image_url": np.ImageURL}}

	url, msg, uploaded := acceptUpload(c, h.postImages, "image")
	switch {
	case uploaded && msg != "":
		page.Errors = validation.Errors{"image_url": msg}
	case uploaded:
		np.ImageURL = url
	case strings.TrimSpace(np.ImageURL) != "":
		h.postImages.AcceptURL(np.ImageURL, upload.Callbacks{OnError: func(m string) {
			page.Errors = validation.Errors{"image_url": m}
		}})
	}
	if len(page.Errors) > 0 {
		h.renderProfile(c, http.StatusUnprocessableEntity, page)
		return
	}

	_, err := h.content.CreatePost(store.Context(c.Request.Context()), store.Snapshot().User.ID, np)
	if err != nil {
		var verrs validation.Errors
		status := http.StatusBadGateway
		if errors.As(err, &verrs) {
			page.Errors = verrs
			status = http.StatusUnprocessableEntity
		} else {
			page.Error = content.Message(err)
		}
		h.renderProfile(c, status, page)
		return
	}
	seeOther(c, "/profile")
}

// UploadPostImage uploads an image for a post being written and answers
// with its public URL as JSON.
func (h *Handler) UploadPostImage(c *gin.Context) {
	url, msg, ok := acceptUpload(c, h.postImages, "file")
	switch {
	case !ok:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please choose an image to upload"})
	case msg != "":
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": msg})
	default:
		c.JSON(http.StatusCreated, gin.H{"url": url})
	}
}

func (h *Handler) DeletePost(c *gin.Context) {
	store := middleware.StoreFrom(c)
	if err := h.content.DeletePost(store.Context(c.Request.Context()), c.Param("id")); err != nil {
		h.renderProfile(c, http.StatusBadGateway, &web.Page{Error: content.Message(err)})
		return
	}
	seeOther(c, "/profile")
}

// acceptUpload feeds the multipart file in field to u. ok is false when the
// form carries no file; otherwise exactly one of url and msg is set.
func acceptUpload(c *gin.Context, u *upload.Uploader, field string) (url, msg string, ok bool) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return "", "", false
	}
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) || c.Request.ContentLength > u.Limit() {
			return "", upload.SizeMessage(u.Limit()), true
		}
		logger.Warnf("read upload %s: %v", field, err)
		return "", "Failed to read the uploaded file", true
	}
	if fh.Size == 0 && fh.Filename == "" {
		return "", "", false
	}
	f, err := fh.Open()
	if err != nil {
		return "", "Failed to read the uploaded file", true
	}
	defer f.Close()

	ctx := middleware.StoreFrom(c).Context(c.Request.Context())
	u.AcceptFile(ctx, upload.File{
		Name:        fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Body:        f,
	}, upload.Callbacks{
		OnComplete: func(s string) { url = s },
		OnError:    func(m string) { msg = m },
	})
	return url, msg, true
}

// limitBody caps request bodies slightly above the upload limit so oversized
// files fail while parsing instead of being buffered.
func limitBody(u *upload.Uploader) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, u.Limit()+1<<20)
		c.Next()
	}
}
