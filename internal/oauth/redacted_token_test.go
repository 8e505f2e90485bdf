package oauth

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func TestRedactedToken_Formatting(t *testing.T) {
	token := NewRedactedToken("live-secret")

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{name: "String", got: token.String(), expected: "[REDACTED]"},
		{name: "%s", got: fmt.Sprintf("%s", token), expected: "[REDACTED]"},
		{name: "%v", got: fmt.Sprintf("%v", token), expected: "[REDACTED]"},
		{name: "%#v", got: fmt.Sprintf("%#v", token), expected: "oauth.RedactedToken{[REDACTED]}"},
		{name: "wrapped in error", got: fmt.Errorf("call failed with %s", token).Error(), expected: "call failed with [REDACTED]"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, tc.got)
			}
		})
	}

	if token.Value() != "live-secret" {
		t.Errorf("Expected Value to return the secret, got %q", token.Value())
	}
}

func TestToken_NeverSerializesSecret(t *testing.T) {
	tok := Token{AccessToken: NewRedactedToken("live-secret"), TokenType: "Bearer", Scope: "browse global"}

	data, err := json.Marshal(tok)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := string(data); !json.Valid(data) || strings.Contains(got, "live-secret") {
		t.Errorf("Token JSON leaked the secret: %s", got)
	}

	if got := fmt.Sprintf("%+v", tok); strings.Contains(got, "live-secret") {
		t.Errorf("Token formatting leaked the secret: %s", got)
	}
}

func TestRedactedToken_IsEmpty(t *testing.T) {
	if !NewRedactedToken("").IsEmpty() {
		t.Error("Expected empty token to report IsEmpty")
	}
	if NewRedactedToken("x").IsEmpty() {
		t.Error("Expected non-empty token not to report IsEmpty")
	}
}
