package google

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RuslanFatikhov/CoffeeLog/internal/auth"

	"golang.org/x/oauth2"
)

const (
	// Issuer is the issuer value Google stamps into id_tokens.
	Issuer = "https://accounts.google.com"

	// JWKSURL serves Google's current id_token signing keys.
	JWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

	authorizeEndpoint = "https://accounts.google.com/o/oauth2/v2/auth"
	tokenEndpoint     = "https://oauth2.googleapis.com/token"

	// exchangeTimeout bounds the single outbound token-exchange call so
	// a stalled provider cannot hang a callback request indefinitely.
	exchangeTimeout = 10 * time.Second
)

// Config holds the OAuth client registration for Google sign-in.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// AuthURL and TokenURL override Google's endpoints. Used by tests;
	// empty means the real Google endpoints.
	AuthURL  string
	TokenURL string
}

// Provider implements the authorization-code flow against Google.
// It returns raw protocol artifacts only; id_token verification and
// user resolution happen elsewhere.
type Provider struct {
	oauthConfig *oauth2.Config
}

func New(cfg Config) (*Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURL == "" {
		return nil, errors.New("google oauth config missing required fields")
	}

	endpoint := oauth2.Endpoint{
		AuthURL:  authorizeEndpoint,
		TokenURL: tokenEndpoint,
	}
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}

	return &Provider{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes: []string{
				"openid",
				"email",
				"profile",
			},
		},
	}, nil
}

// AuthCodeURL builds the authorization redirect URL. prompt=select_account
// and max_age=0 force Google to re-ask which account to use instead of
// silently reusing a previous grant.
func (p *Provider) AuthCodeURL(state string, nonce string) string {
	return p.oauthConfig.AuthCodeURL(
		state,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("prompt", "select_account"),
		oauth2.SetAuthURLParam("max_age", "0"),
	)
}

// Exchange trades the authorization code for Google's raw id_token.
// A non-success status from the token endpoint maps to *auth.ExchangeError;
// any transport failure maps to auth.ErrProviderUnreachable.
func (p *Provider) Exchange(ctx context.Context, code string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()

	token, err := p.oauthConfig.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return "", &auth.ExchangeError{Status: retrieveErr.Response.StatusCode}
		}
		return "", fmt.Errorf("%w: %v", auth.ErrProviderUnreachable, err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return "", errors.New("google token response missing id_token")
	}

	return rawIDToken, nil
}
