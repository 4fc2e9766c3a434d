package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderUnreachable means the token exchange never got an
	// HTTP response from the provider (network failure, timeout).
	ErrProviderUnreachable = errors.New("identity provider unreachable")

	// ErrIncompleteClaims means a verified id_token lacks the required
	// subject or email claim.
	ErrIncompleteClaims = errors.New("id_token claims missing subject or email")
)

// ExchangeError reports a non-success HTTP status from the provider's
// token endpoint during the authorization-code exchange.
type ExchangeError struct {
	Status int
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("provider token exchange failed: status %d", e.Status)
}

// TokenCheck identifies a single id_token validation step.
type TokenCheck string

const (
	CheckSignature TokenCheck = "signature"
	CheckIssuer    TokenCheck = "issuer"
	CheckAudience  TokenCheck = "audience"
	CheckExpiry    TokenCheck = "expiry"
	CheckNonce     TokenCheck = "nonce"
)

// TokenError reports which id_token validation check failed. Checks run
// in a fixed order and short-circuit, so Check names the first failure.
type TokenError struct {
	Check TokenCheck
	Err   error
}

func (e *TokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("id_token %s check failed: %v", e.Check, e.Err)
	}
	return fmt.Sprintf("id_token %s check failed", e.Check)
}

func (e *TokenError) Unwrap() error { return e.Err }
