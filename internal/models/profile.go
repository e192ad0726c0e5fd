package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultProfileName is the name of the workspace created for new users
const DefaultProfileName = "Main"

// Profile is a user-scoped workspace partitioning tasks and categories
type Profile struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	Color     *string   `json:"color,omitempty"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Category groups tasks inside a profile
type Category struct {
	ID        uuid.UUID `json:"id"`
	ProfileID uuid.UUID `json:"profile_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a copy of the category
func (c Category) Clone() Category {
	return c
}
