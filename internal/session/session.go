// Package session holds the per-browser authentication state machine:
// ANONYMOUS -> PENDING (login started) -> AUTHENTICATED -> ANONYMOUS.
// The two non-anonymous states are stored under separate keys so each is
// unrepresentable without its required fields, and consuming a pending
// handshake is a single atomic read-and-clear.
package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoPendingHandshake means a callback arrived for a session with
	// no pending login: the handshake expired, was already consumed, or
	// the browser sent a cookie for a different session.
	ErrNoPendingHandshake = errors.New("session: no pending login handshake")

	// ErrStateMismatch means the callback's state parameter does not
	// match the stored one. The handshake is gone regardless.
	ErrStateMismatch = errors.New("session: oauth state mismatch")
)

// Handshake is the ephemeral anti-forgery pair minted when a login
// starts. It is consumed exactly once when the callback arrives.
type Handshake struct {
	State string `json:"state"`
	Nonce string `json:"nonce"`
}

// Authenticated carries the identity bound to a logged-in session.
// A session is authenticated iff both UserID and ExternalSubject are set.
type Authenticated struct {
	UserID          string    `json:"user_id"`
	ExternalSubject string    `json:"external_subject"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// Store persists session state server-side, keyed by the opaque session
// id carried in the browser cookie. Implementations must make
// ConsumeHandshake atomic: two concurrent callbacks for the same session
// id must not both observe the handshake.
type Store interface {
	// StartLogin records a new pending handshake, overwriting any prior
	// one. Only the most recent login attempt is honored.
	StartLogin(ctx context.Context, sid string, hs Handshake) error

	// ConsumeHandshake removes the pending handshake as its very first
	// action, then compares states. ErrNoPendingHandshake when nothing
	// was stored; ErrStateMismatch when states differ. Either way the
	// handshake can never be consumed twice.
	ConsumeHandshake(ctx context.Context, sid string, state string) (Handshake, error)

	// Establish transitions the session to authenticated.
	Establish(ctx context.Context, sid string, a Authenticated) error

	// Get returns the authenticated identity, or nil for an anonymous
	// (or expired) session.
	Get(ctx context.Context, sid string) (*Authenticated, error)

	// Clear removes all state for the session. Idempotent.
	Clear(ctx context.Context, sid string) error
}
