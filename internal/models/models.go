package models

import (
	"strings"
	"time"
)

// User is the signed-in identity joined with its profile row.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DisplayName falls back to the local part of the email.
func (u *User) DisplayName() string {
	return displayName(u.FullName, u.Email)
}

// Profile is the persisted row holding display fields for an identity.
type Profile struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FullName  string     `json:"full_name"`
	AvatarURL *string    `json:"avatar_url"`
	CreatedAt time.Time  `json:"created_at,omitzero"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// NewProfile is the row inserted the first time an identity is seen.
type NewProfile struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// ProfileEdit holds the mutable profile fields.
type ProfileEdit struct {
	FullName  string  `json:"full_name"`
	AvatarURL *string `json:"avatar_url"`
}

// Post is a short text-plus-image entry owned by one user.
type Post struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	ImageURL  string     `json:"image_url,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Author is the subset of the owner's profile shown next to a post.
type Author struct {
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Email     string `json:"email"`
}

// PostWithAuthor is a post joined with its owner's profile. Profile is nil
// when the owner has no profile row.
type PostWithAuthor struct {
	Post
	Profile *Author `json:"profiles"`
}

// AuthorName is the name shown on post cards.
func (p *PostWithAuthor) AuthorName() string {
	if p.Profile == nil {
		return "Anonymous"
	}
	return displayName(p.Profile.FullName, p.Profile.Email)
}

// NewPost is the creation form's payload.
type NewPost struct {
	Title    string `json:"title" form:"title"`
	Content  string `json:"content" form:"content"`
	ImageURL string `json:"image_url" form:"image_url"`
}

// ContactMessage is a message sent through the contact form.
type ContactMessage struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name" form:"name"`
	Email     string    `json:"email" form:"email"`
	Subject   string    `json:"subject" form:"subject"`
	Message   string    `json:"message" form:"message"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

func displayName(fullName, email string) string {
	if strings.TrimSpace(fullName) != "" {
		return fullName
	}
	if email != "" {
		if local, _, ok := strings.Cut(email, "@"); ok && local != "" {
			return local
		}
		return email
	}
	return "Anonymous"
}
