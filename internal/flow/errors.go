package flow

import (
	"errors"
	"fmt"

	"scopegate/internal/oauth"
	"scopegate/internal/resourceapi"
)

// ErrInvalidRequest is returned when an inbound request lacks the fields an
// operation needs.
var ErrInvalidRequest = errors.New("invalid request")

// UpstreamFetchError reports a failed call to the resource API or the provider's
// discovery endpoint: either a transport failure or a non-2xx answer.
type UpstreamFetchError struct {
	// Step names what was being attempted, such as "fetch action info".
	Step   string
	URL    string
	Status int
	Body   string

	// Challenge is the parsed WWW-Authenticate header of a 401 or 403 answer.
	Challenge *oauth.WWWAuthenticateParams

	// Retryable is set when the call ran out of time. Nothing was consumed, so the
	// same request may be repeated.
	Retryable bool
	Err       error
}

func (e *UpstreamFetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s returned status %d", e.Step, e.URL, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *UpstreamFetchError) Unwrap() error {
	return e.Err
}

// AuthExchangeError reports that the token endpoint rejected the authorization code
// or answered with something other than a token. The user's token is unchanged.
type AuthExchangeError struct {
	Status    int
	Body      string
	Retryable bool
	Err       error
}

func (e *AuthExchangeError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("exchange authorization code: token endpoint returned status %d", e.Status)
	}
	return fmt.Sprintf("exchange authorization code: %v", e.Err)
}

func (e *AuthExchangeError) Unwrap() error {
	return e.Err
}

// ProviderDeniedError carries the error the provider redirected back with.
type ProviderDeniedError struct {
	Code        string
	Description string
}

func (e *ProviderDeniedError) Error() string {
	return fmt.Sprintf("Auth failed: error: %s, error_description: %s", e.Code, e.Description)
}

// FlowExpiredError means a callback referenced pending work that no longer exists:
// it was already resumed, it expired, or the state was never ours.
type FlowExpiredError struct {
	Reason string
	Err    error
}

func (e *FlowExpiredError) Error() string {
	return "flow expired: " + e.Reason
}

func (e *FlowExpiredError) Unwrap() error {
	return e.Err
}

// upstreamError converts a resource API failure into an UpstreamFetchError.
func upstreamError(step, url string, err error) error {
	ue := &UpstreamFetchError{
		Step:      step,
		URL:       url,
		Retryable: resourceapi.IsTimeout(err),
		Err:       err,
	}

	var statusErr *resourceapi.StatusError
	if errors.As(err, &statusErr) {
		ue.URL = statusErr.URL
		ue.Status = statusErr.Status
		ue.Body = string(statusErr.Body)
		ue.Challenge = oauth.ParseWWWAuthenticate(statusErr.Header.Get("WWW-Authenticate"))
	}
	return ue
}

// exchangeError converts a broker failure into an AuthExchangeError.
func exchangeError(err error) error {
	ae := &AuthExchangeError{Err: err, Retryable: resourceapi.IsTimeout(err)}

	var authErr *oauth.AuthError
	if errors.As(err, &authErr) {
		ae.Status = authErr.Status
		ae.Body = authErr.Body
	}
	return ae
}
