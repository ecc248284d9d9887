package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegister(t *testing.T) {
	assert.Empty(t, Register("Ann", "ann@example.com", "secret1", "secret1"))

	e := Register("", "not-an-email", "123", "456")
	assert.Equal(t, "Full name is required", e["fullName"])
	assert.Equal(t, "Email is invalid", e["email"])
	assert.Equal(t, "Password must be at least 6 characters", e["password"])
	assert.Equal(t, "Passwords do not match", e["confirmPassword"])

	e = Register("Ann", "", "", "")
	assert.Equal(t, "Email is required", e["email"])
	assert.Equal(t, "Password is required", e["password"])
	assert.Equal(t, "Please confirm your password", e["confirmPassword"])
}

func TestContact(t *testing.T) {
	assert.Empty(t, Contact("Ann", "ann@example.com", "Hi", "Hello"))
	e := Contact(" ", "a@b", "", "")
	assert.Len(t, e, 4)
	assert.Equal(t, "Email is invalid", e["email"])
}

func TestErrorsAsError(t *testing.T) {
	assert.NoError(t, Errors{}.Err())
	err := Post("", "").Err()
	assert.EqualError(t, err, "content: Content is required; title: Title is required")
}

func TestIsEmail(t *testing.T) {
	assert.True(t, IsEmail("a@b.co"))
	assert.False(t, IsEmail("a@b"))
	assert.False(t, IsEmail("ab.co"))
}
