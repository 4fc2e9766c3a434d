package auth

// Identity represents a verified external identity returned by the
// OIDC provider. It contains facts only, no decisions.
type Identity struct {
	Subject     string // provider's stable user identifier ("sub" claim)
	Email       string // email asserted by the provider
	DisplayName string // optional display name ("name" claim)
	AvatarURL   string // optional avatar ("picture" claim)
	Nonce       string // nonce embedded in the id_token
}
