package flow

import (
	"scopegate/internal/action"
	"scopegate/internal/resourceapi"
)

// State is a position in the authorization flow.
type State string

const (
	StateNoToken              State = "NO_TOKEN"
	StateAwaitingCallback     State = "AWAITING_PROVIDER_CALLBACK"
	StateTokenPresent         State = "TOKEN_PRESENT"
	StateResumingContext      State = "RESUMING_CONTEXT"
	StateResumingContinuation State = "RESUMING_CONTINUATION"
)

// Outcome is what a flow step produced. Exactly one of RedirectURL, Context or
// Result drives the response; Context may accompany Result so the page can offer
// further actions.
type Outcome struct {
	// State is the state the step ended in.
	State State

	// RedirectURL is set when the browser must go to the provider.
	RedirectURL string

	// Context is the action the main handler is serving. Its Key is live and can be
	// used for escalation requests.
	Context *action.Context

	// Result is set when a continuation ran.
	Result *Result
}

// IsRedirect reports whether the outcome sends the browser to the provider.
func (o Outcome) IsRedirect() bool {
	return o.RedirectURL != ""
}

// Result describes a continuation that ran.
type Result struct {
	UserID       string
	Continuation action.Continuation
	Analysis     *resourceapi.AppResult
	File         *resourceapi.File
}

// TriggerRequest carries the fields of the multiplexed trigger endpoint.
type TriggerRequest struct {
	Action    string
	ActionURI string
	ReturnURI string

	Error            string
	ErrorDescription string

	State string
	Code  string
}
