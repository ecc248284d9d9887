// Package content reads and writes posts, profiles and contact messages
// through the backend's row store.
package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modernplatform/modern-platform/internal/backend"
	"github.com/modernplatform/modern-platform/internal/models"
	"github.com/modernplatform/modern-platform/internal/validation"
	"github.com/modernplatform/modern-platform/pkg/logger"
	"github.com/modernplatform/modern-platform/pkg/metrics"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrProfileNotFound  = errors.New("profile not found")
	ErrLoadPosts        = errors.New("load posts failed")
	ErrDeletePost       = errors.New("delete post failed")
	ErrSaveProfile      = errors.New("save profile failed")
	ErrSubmitContact    = errors.New("submit contact message failed")
)

// Message converts an error from this package into the text shown to users.
func Message(err error) string {
	var verrs validation.Errors
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verrs):
		return "Please correct the highlighted fields."
	case errors.Is(err, ErrNotAuthenticated):
		return "Please sign in to create a post"
	case errors.Is(err, ErrProfileNotFound):
		return "User profile not found. Please try logging in again."
	case errors.Is(err, ErrLoadPosts):
		return "Failed to load posts. Please try again later."
	case errors.Is(err, ErrDeletePost):
		return "Failed to delete post. Please try again later."
	case errors.Is(err, ErrSaveProfile):
		return "Failed to update profile. Please try again later."
	case errors.Is(err, ErrSubmitContact):
		return "Failed to send message. Please try again."
	default:
		return err.Error()
	}
}

// authorColumns are the owner profile fields shown on post cards.
var authorColumns = []string{"full_name", "avatar_url", "email"}

// Service wraps the backend row store.
type Service struct {
	rows backend.Rows
}

func NewService(rows backend.Rows) *Service {
	return &Service{rows: rows}
}

// ListAllPosts returns every post with its author, newest first.
func (s *Service) ListAllPosts(ctx context.Context) ([]models.PostWithAuthor, error) {
	posts := []models.PostWithAuthor{}
	err := s.rows.Select(ctx, backend.TablePosts, backend.Query{
		Order: &backend.Order{Column: "created_at", Desc: true},
		Embed: &backend.Embed{Table: backend.TableProfiles, Column: "user_id", As: "profiles", Columns: authorColumns},
	}, &posts)
	if err != nil {
		logger.Errorf("list posts: %v", err)
		return nil, fmt.Errorf("%w: %w", ErrLoadPosts, err)
	}
	return posts, nil
}

// ListPostsByOwner returns one user's posts, newest first.
func (s *Service) ListPostsByOwner(ctx context.Context, userID string) ([]models.Post, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	posts := []models.Post{}
	err := s.rows.Select(ctx, backend.TablePosts, backend.Query{
		Eq:    map[string]string{"user_id": userID},
		Order: &backend.Order{Column: "created_at", Desc: true},
	}, &posts)
	if err != nil {
		logger.Errorf("list posts of %s: %v", userID, err)
		return nil, fmt.Errorf("%w: %w", ErrLoadPosts, err)
	}
	return posts, nil
}

// postRow is the inserted representation of a post.
type postRow struct {
	UserID   string  `json:"user_id"`
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	ImageURL *string `json:"image_url"`
}

// CreatePost inserts a post owned by ownerID after confirming the owner's
// profile still exists.
func (s *Service) CreatePost(ctx context.Context, ownerID string, p models.NewPost) (*models.Post, error) {
	if ownerID == "" {
		return nil, ErrNotAuthenticated
	}
	if err := validation.Post(p.Title, p.Content).Err(); err != nil {
		return nil, err
	}
	var owners []models.Profile
	err := s.rows.Select(ctx, backend.TableProfiles, backend.Query{
		Columns: []string{"id"},
		Eq:      map[string]string{"id": ownerID},
		Limit:   1,
	}, &owners)
	if err != nil || len(owners) == 0 {
		if err != nil {
			logger.Warnf("profile check for %s: %v", ownerID, err)
		}
		return nil, ErrProfileNotFound
	}
	row := postRow{UserID: ownerID, Title: strings.TrimSpace(p.Title), Content: strings.TrimSpace(p.Content)}
	if img := strings.TrimSpace(p.ImageURL); img != "" {
		row.ImageURL = &img
	}
	var created models.Post
	if err := s.rows.Insert(ctx, backend.TablePosts, row, &created); err != nil {
		logger.Errorf("create post for %s: %v", ownerID, err)
		return nil, err
	}
	metrics.PostsCreated.Inc()
	return &created, nil
}

// DeletePost removes a post. Ownership is enforced by the backend, so a
// post of someone else yields backend.ErrNotFound.
func (s *Service) DeletePost(ctx context.Context, postID string) error {
	if err := s.rows.Delete(ctx, backend.TablePosts, map[string]string{"id": postID}); err != nil {
		logger.Warnf("delete post %s: %v", postID, err)
		return fmt.Errorf("%w: %w", ErrDeletePost, err)
	}
	metrics.PostsDeleted.Inc()
	return nil
}

// SaveProfile updates the caller's display fields.
func (s *Service) SaveProfile(ctx context.Context, userID string, edit models.ProfileEdit) error {
	if userID == "" {
		return ErrNotAuthenticated
	}
	edit.FullName = strings.TrimSpace(edit.FullName)
	if err := s.rows.Update(ctx, backend.TableProfiles, map[string]string{"id": userID}, edit); err != nil {
		logger.Warnf("save profile %s: %v", userID, err)
		return fmt.Errorf("%w: %w", ErrSaveProfile, err)
	}
	return nil
}

// SubmitContact validates and stores a contact form message.
func (s *Service) SubmitContact(ctx context.Context, m models.ContactMessage) error {
	if err := validation.Contact(m.Name, m.Email, m.Subject, m.Message).Err(); err != nil {
		return err
	}
	m.ID = ""
	if err := s.rows.Insert(ctx, backend.TableContactMessages, m, nil); err != nil {
		logger.Errorf("contact message: %v", err)
		return fmt.Errorf("%w: %w", ErrSubmitContact, err)
	}
	return nil
}
