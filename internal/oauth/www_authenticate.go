package oauth

import (
	"regexp"
	"strings"
)

// ErrorInsufficientScope is the RFC 6750 error code a resource server returns when
// the presented token lacks a required scope.
const ErrorInsufficientScope = "insufficient_scope"

var challengeParamRegex = regexp.MustCompile(`(\w+)="([^"]*)"`)

// ParseWWWAuthenticate parses a WWW-Authenticate header value returned by the resource
// API when a bearer token is rejected.
//
// Example header:
//
//	Bearer realm="api", error="insufficient_scope", scope="write project 42"
func ParseWWWAuthenticate(header string) *WWWAuthenticateParams {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}

	params := &WWWAuthenticateParams{}

	parts := strings.SplitN(header, " ", 2)
	params.Scheme = strings.TrimSpace(parts[0])
	if len(parts) == 1 {
		return params
	}

	for _, match := range challengeParamRegex.FindAllStringSubmatch(parts[1], -1) {
		if len(match) != 3 {
			continue
		}
		value := match[2]

		switch strings.ToLower(match[1]) {
		case "realm":
			params.Realm = value
		case "scope":
			params.Scope = value
		case "error":
			params.Error = value
		case "error_description":
			params.ErrorDescription = value
		}
	}

	return params
}

// IsBearer reports whether the challenge uses the Bearer scheme.
func (p *WWWAuthenticateParams) IsBearer() bool {
	return p != nil && strings.EqualFold(p.Scheme, "Bearer")
}

// NeedsScope returns the scope a Bearer challenge asks for when the token was
// rejected for insufficient scope, and "" otherwise.
func (p *WWWAuthenticateParams) NeedsScope() string {
	if !p.IsBearer() || p.Error != ErrorInsufficientScope {
		return ""
	}
	return p.Scope
}
