package oauth

import (
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// Token is an access token obtained for an end user.
type Token struct {
	// AccessToken is the bearer token. It prints as [REDACTED].
	AccessToken RedactedToken

	// TokenType is typically "Bearer".
	TokenType string

	// ExpiresAt is the calculated expiration timestamp. Zero means unknown.
	// It is recorded but not enforced: stored tokens are used until replaced.
	ExpiresAt time.Time

	// Scope is the granted scope. The provider may not report one, in which case
	// the caller records the scope it requested.
	Scope string
}

// IsExpired reports whether the token expires within margin.
// Tokens without an expiration never expire.
func (t *Token) IsExpired(margin time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(margin).After(t.ExpiresAt)
}

// tokenFromOAuth2 converts a golang.org/x/oauth2 token.
func tokenFromOAuth2(tok *oauth2.Token) *Token {
	scope, _ := tok.Extra("scope").(string)
	return &Token{
		AccessToken: NewRedactedToken(tok.AccessToken),
		TokenType:   tok.TokenType,
		ExpiresAt:   tok.Expiry,
		Scope:       scope,
	}
}

// OAuthMetadata represents the OAuth 2.0 Authorization Server Metadata
// as defined in RFC 8414. Only the fields scopegate uses are decoded.
type OAuthMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
}

// AuthError is returned when the token endpoint rejects a code or answers with
// something that is not a token. Status is zero when no HTTP response was received.
type AuthError struct {
	Status int
	Body   string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("token exchange failed: %v", e.Err)
	}
	return fmt.Sprintf("token exchange failed with status %d", e.Status)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// WWWAuthenticateParams contains parsed parameters from a WWW-Authenticate header.
type WWWAuthenticateParams struct {
	// Scheme is the authentication scheme (e.g., "Bearer").
	Scheme string

	// Realm is the authentication realm.
	Realm string

	// Scope is the scope the resource requires.
	Scope string

	// Error is an OAuth error code if present, such as "insufficient_scope".
	Error string

	// ErrorDescription provides details about the error.
	ErrorDescription string
}
