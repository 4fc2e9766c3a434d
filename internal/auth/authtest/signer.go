// Package authtest provides helpers for minting signed id_tokens in tests.
package authtest

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/coreos/go-oidc/v3/oidc"
	jose "github.com/go-jose/go-jose/v4"
)

// Signer mints RS256-signed id_tokens and exposes the matching key set,
// standing in for the provider's JWKS endpoint.
type Signer struct {
	key    *rsa.PrivateKey
	signer jose.Signer
}

func NewSigner(t *testing.T) *Signer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: key},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		t.Fatalf("create jose signer: %v", err)
	}

	return &Signer{key: key, signer: signer}
}

// Mint signs the given claims into a compact-serialized id_token.
func (s *Signer) Mint(t *testing.T, claims map[string]any) string {
	t.Helper()

	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}

	jws, err := s.signer.Sign(payload)
	if err != nil {
		t.Fatalf("sign claims: %v", err)
	}

	raw, err := jws.CompactSerialize()
	if err != nil {
		t.Fatalf("serialize token: %v", err)
	}
	return raw
}

// KeySet returns an oidc.KeySet that accepts tokens signed by this Signer.
func (s *Signer) KeySet() oidc.KeySet {
	return &staticKeySet{key: &s.key.PublicKey}
}

type staticKeySet struct {
	key *rsa.PublicKey
}

func (ks *staticKeySet) VerifySignature(_ context.Context, rawJWT string) ([]byte, error) {
	jws, err := jose.ParseSigned(rawJWT, []jose.SignatureAlgorithm{jose.RS256})
	if err != nil {
		return nil, fmt.Errorf("parse jwt: %w", err)
	}
	return jws.Verify(ks.key)
}
