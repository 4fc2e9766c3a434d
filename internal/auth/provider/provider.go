package provider

import "context"

// Provider defines the contract for the external identity provider.
// Implementations return raw protocol artifacts only and must not
// perform claim verification, user creation or session management.
type Provider interface {
	// AuthCodeURL returns the authorization redirect URL embedding the
	// given state and nonce. Pure; no I/O.
	AuthCodeURL(state string, nonce string) string

	// Exchange trades an authorization code for the provider's raw
	// id_token over a single bounded server-to-server call. No retries;
	// retry policy, if any, belongs to the caller.
	Exchange(ctx context.Context, code string) (rawIDToken string, err error)
}
