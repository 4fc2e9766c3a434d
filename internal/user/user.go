package user

import (
	"context"
	"time"

	"github.com/RuslanFatikhov/CoffeeLog/internal/auth"
)

// User is the local account a verified external identity is bound to.
// ExternalSubject is the sole join key from the provider's identity and
// never changes once set. Profile fields mirror the latest login and are
// not editable locally.
type User struct {
	ID              string    `json:"id"`
	ExternalSubject string    `json:"-"`
	Email           string    `json:"email"`
	DisplayName     string    `json:"display_name,omitempty"`
	AvatarURL       string    `json:"avatar_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Store is where identity-to-user binding lives.
type Store interface {
	// Upsert creates the local user on first login for a subject and
	// refreshes email/display name/avatar on every later one. Must be
	// atomic under concurrent logins for the same subject.
	Upsert(ctx context.Context, identity *auth.Identity) (*User, error)

	// GetByID returns the user or nil when no such user exists.
	GetByID(ctx context.Context, id string) (*User, error)
}
