// Package oauth implements the client side of the OAuth2 authorization-code flow
// against the resource provider.
//
// # Components
//
//   - Client: builds authorization URLs and exchanges codes for tokens on top of
//     golang.org/x/oauth2. Endpoints are configured directly or discovered from an
//     issuer (RFC 8414, falling back to OpenID Connect discovery).
//   - CompositeState: the userId:contextKey[:continuationKey] value carried through
//     the provider's state parameter.
//   - Token and RedactedToken: the stored access token, which never prints its value.
//   - ParseWWWAuthenticate: reads Bearer challenges returned by the resource API.
//
// # Flow
//
//  1. A handler registers the pending work and encodes its keys with EncodeState
//  2. The user is redirected to Client.AuthorizeURL with the required scope
//  3. The provider redirects back with code and state
//  4. DecodeState recovers the keys and Client.Exchange obtains the token
//
// # Errors
//
// Every failure of Exchange is an *AuthError that carries the HTTP status and body
// received from the token endpoint, or status 0 when no response arrived.
//
// # Security
//
// The state value is only a lookup path. It is unguessable because the context and
// continuation keys are random UUIDs, but there is no further CSRF binding. Access
// tokens are wrapped in RedactedToken so that fmt, slog and encoding/json all print
// [REDACTED].
package oauth
