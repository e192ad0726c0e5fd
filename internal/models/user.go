package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is the local mirror of an identity provider subject. Profiles,
// tasks and settings hang off its ID.
type User struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	ProviderID    *string   `json:"provider_id,omitempty"`
	Name          *string   `json:"name,omitempty"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UserFromClaims builds the user row for a verified id token. The ID is
// provisional; an existing row for the same subject keeps its own.
func UserFromClaims(c *JWTClaims) *User {
	sub := c.Sub
	u := &User{
		ID:            uuid.New(),
		Email:         strings.TrimSpace(c.Email),
		ProviderID:    &sub,
		EmailVerified: c.EmailVerified,
	}
	if name := strings.TrimSpace(c.Name); name != "" {
		u.Name = &name
	}
	return u
}

// DisplayName is the name shown in the board header
func (u *User) DisplayName() string {
	if u.Name != nil && *u.Name != "" {
		return *u.Name
	}
	if local, _, ok := strings.Cut(u.Email, "@"); ok && local != "" {
		return local
	}
	return u.Email
}
