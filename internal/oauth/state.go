package oauth

import (
	"errors"
	"fmt"
	"strings"
)

// stateSeparator joins the parts of the composite state. Registry keys are UUIDs and
// never contain it; user ids containing it are rejected at encode time.
const stateSeparator = ":"

// ErrInvalidState is returned when a state value was not produced by EncodeState.
var ErrInvalidState = errors.New("invalid composite state")

// CompositeState is the lookup path carried through the provider's state parameter:
// which user the callback belongs to, which context to resume, and optionally which
// continuation to run.
type CompositeState struct {
	UserID          string
	ContextKey      string
	ContinuationKey string
}

// HasContinuation reports whether the state points at a pending continuation.
func (s CompositeState) HasContinuation() bool {
	return s.ContinuationKey != ""
}

// Encode renders the state as userId:contextKey[:continuationKey].
func (s CompositeState) Encode() (string, error) {
	return EncodeState(s.UserID, s.ContextKey, s.ContinuationKey)
}

// EncodeState renders userId:contextKey[:continuationKey].
// The continuation key is optional; the other two parts are required.
func EncodeState(userID, contextKey, continuationKey string) (string, error) {
	if userID == "" || contextKey == "" {
		return "", fmt.Errorf("%w: user id and context key are required", ErrInvalidState)
	}
	for _, part := range []string{userID, contextKey, continuationKey} {
		if strings.Contains(part, stateSeparator) {
			return "", fmt.Errorf("%w: %q contains %q", ErrInvalidState, part, stateSeparator)
		}
	}

	parts := []string{userID, contextKey}
	if continuationKey != "" {
		parts = append(parts, continuationKey)
	}
	return strings.Join(parts, stateSeparator), nil
}

// ValidateStateUserID checks that userID can be carried in a composite state.
func ValidateStateUserID(userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidState)
	}
	if strings.Contains(userID, stateSeparator) {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidState, userID, stateSeparator)
	}
	return nil
}

// DecodeState parses a state value produced by EncodeState.
func DecodeState(state string) (CompositeState, error) {
	parts := strings.Split(state, stateSeparator)
	if len(parts) < 2 || len(parts) > 3 {
		return CompositeState{}, fmt.Errorf("%w: expected 2 or 3 parts, got %d", ErrInvalidState, len(parts))
	}
	for _, p := range parts {
		if p == "" {
			return CompositeState{}, fmt.Errorf("%w: empty part", ErrInvalidState)
		}
	}

	s := CompositeState{UserID: parts[0], ContextKey: parts[1]}
	if len(parts) == 3 {
		s.ContinuationKey = parts[2]
	}
	return s, nil
}
