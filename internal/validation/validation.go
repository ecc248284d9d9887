// Package validation checks form input before anything is sent to the backend.
package validation

import (
	"regexp"
	"sort"
	"strings"
)

var emailRe = regexp.MustCompile(`\S+@\S+\.\S+`)

// MinPasswordLength is the shortest password accepted on registration.
const MinPasswordLength = 6

// Errors maps a form field to the message shown next to it.
type Errors map[string]string

func (e Errors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e[k]
	}
	return strings.Join(parts, "; ")
}

// Err returns e as an error, or nil when there is nothing to report.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Required records msg for field when value is blank.
func (e Errors) Required(field, value, msg string) bool {
	if strings.TrimSpace(value) == "" {
		e[field] = msg
		return false
	}
	return true
}

// IsEmail reports whether v looks like an email address.
func IsEmail(v string) bool {
	return emailRe.MatchString(v)
}

func (e Errors) email(field, value string) {
	if e.Required(field, value, "Email is required") && !IsEmail(value) {
		e[field] = "Email is invalid"
	}
}

// Login checks the sign-in form.
func Login(email, password string) Errors {
	e := Errors{}
	e.email("email", email)
	e.Required("password", password, "Password is required")
	return e
}

// Register checks the registration form.
func Register(fullName, email, password, confirm string) Errors {
	e := Errors{}
	e.Required("fullName", fullName, "Full name is required")
	e.email("email", email)
	if e.Required("password", password, "Password is required") && len(password) < MinPasswordLength {
		e["password"] = "Password must be at least 6 characters"
	}
	if e.Required("confirmPassword", confirm, "Please confirm your password") && confirm != password {
		e["confirmPassword"] = "Passwords do not match"
	}
	return e
}

// Contact checks the contact form.
func Contact(name, email, subject, message string) Errors {
	e := Errors{}
	e.Required("name", name, "Name is required")
	e.email("email", email)
	e.Required("subject", subject, "Subject is required")
	e.Required("message", message, "Message is required")
	return e
}

// Post checks the post creation form.
func Post(title, content string) Errors {
	e := Errors{}
	e.Required("title", title, "Title is required")
	e.Required("content", content, "Content is required")
	return e
}
