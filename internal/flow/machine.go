// Package flow is the authorization state machine. It decides when a user must go
// through the provider, parks the work that is waiting for them, and resumes exactly
// that work when the provider sends them back.
//
// A round-trip starts in one of two ways. An action trigger for a user with no token
// parks the action context and redirects. An operation that needs a broader scope
// parks a continuation next to the context and redirects for the wider scope. The
// provider's callback carries the keys of the parked entries in its state value, so
// the callback can take them back out and resume.
package flow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"scopegate/internal/action"
	"scopegate/internal/oauth"
	"scopegate/internal/resourceapi"
	"scopegate/internal/userstate"
	"scopegate/pkg/logging"
)

// InvalidTokenBody is returned by FetchResource when the user has no token.
const InvalidTokenBody = `{"error":"invalid auth token"}`

// Broker performs the provider side of the authorization-code flow.
type Broker interface {
	AuthorizeURL(ctx context.Context, state, scope string) (string, error)
	Exchange(ctx context.Context, code string) (*oauth.Token, error)
}

// ResourceAPI is the part of the resource API the flow uses.
type ResourceAPI interface {
	FetchActionInfo(ctx context.Context, actionURI string) (*action.Context, error)
	Call(ctx context.Context, method, path, token string, body []byte) (int, []byte, error)
	CreateAnalysis(ctx context.Context, token, projectID, name, description string) (*resourceapi.AppResult, error)
	UploadFile(ctx context.Context, token, analysisID, name, directory, contentType string, data []byte) (*resourceapi.File, error)
	SetAnalysisStatus(ctx context.Context, token, analysisID, status, summary string) (*resourceapi.AppResult, error)
}

// Options tunes a Machine.
type Options struct {
	// DefaultScope is requested for every action. It defaults to action.DefaultScope.
	DefaultScope string
}

// Machine runs the authorization flow for all users. It holds no per-request state
// and is safe for concurrent use.
type Machine struct {
	store        userstate.Store
	broker       Broker
	api          ResourceAPI
	defaultScope string
	now          func() time.Time
}

// NewMachine wires a state machine.
func NewMachine(store userstate.Store, broker Broker, api ResourceAPI, opts Options) *Machine {
	if opts.DefaultScope == "" {
		opts.DefaultScope = action.DefaultScope
	}
	return &Machine{
		store:        store,
		broker:       broker,
		api:          api,
		defaultScope: opts.DefaultScope,
		now:          time.Now,
	}
}

// Trigger is the single entry point the resource platform and the provider both
// redirect to. An actionuri starts a new action, an error reports a refused
// authorization, and anything else is treated as a provider callback.
func (m *Machine) Trigger(ctx context.Context, req TriggerRequest) (Outcome, error) {
	switch {
	case req.ActionURI != "":
		return m.HandleInitialTrigger(ctx, req)
	case req.Error != "":
		return m.HandleProviderError(req.Error, req.ErrorDescription)
	default:
		return m.HandleCallback(ctx, req.State, req.Code)
	}
}

// HandleInitialTrigger loads the action a user launched. With a token on file the
// action is served straight away; otherwise it is parked and the user is sent to
// the provider.
func (m *Machine) HandleInitialTrigger(ctx context.Context, req TriggerRequest) (Outcome, error) {
	c, err := m.api.FetchActionInfo(ctx, req.ActionURI)
	if errors.Is(err, resourceapi.ErrForeignHost) {
		return Outcome{State: StateNoToken}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err != nil {
		return Outcome{State: StateNoToken}, upstreamError("fetch action info", req.ActionURI, err)
	}
	c.Action = req.Action
	c.ActionURI = req.ActionURI
	c.ReturnURI = req.ReturnURI
	c.Scope = action.DeriveScope(m.defaultScope, c)

	userID := c.UserID()
	if err := oauth.ValidateStateUserID(userID); err != nil {
		return Outcome{State: StateNoToken}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	token, ok, err := m.store.GetToken(ctx, userID)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to look up token: %w", err)
	}
	if ok {
		warnIfExpired(userID, token)
		logging.Debug("Flow", "User %s already authorized, serving action directly", logging.TruncateID(userID))
		return m.Main(ctx, c, StateTokenPresent)
	}

	key, err := m.store.PutContext(ctx, userID, c)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to park action context: %w", err)
	}

	state, err := oauth.EncodeState(userID, key, "")
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	logging.Info("Flow", "Redirecting user %s for authorization (context=%s, scope=%q)",
		logging.TruncateID(userID), logging.TruncateID(key), c.Scope)
	return m.redirect(ctx, state, c.Scope)
}

// HandleProviderError reports the error the provider redirected back with. Nothing
// is changed; parked entries stay where they are.
func (m *Machine) HandleProviderError(code, description string) (Outcome, error) {
	logging.Warn("Flow", "Provider refused authorization: %s (%s)", code, description)
	return Outcome{State: StateNoToken}, &ProviderDeniedError{Code: code, Description: description}
}

// HandleCallback completes a round-trip: it exchanges the code, stores the token and
// resumes the parked continuation or, failing that, the parked context.
func (m *Machine) HandleCallback(ctx context.Context, rawState, code string) (Outcome, error) {
	cs, err := oauth.DecodeState(rawState)
	if err != nil {
		return Outcome{State: StateNoToken}, &FlowExpiredError{Reason: "unrecognized state", Err: err}
	}
	userID := cs.UserID

	token, err := m.broker.Exchange(ctx, code)
	if err != nil {
		logging.Warn("Flow", "Token exchange failed for user %s: %v", logging.TruncateID(userID), err)
		if !m.pending(ctx, cs) {
			// Nothing left to resume: a replayed callback whose code is spent.
			return Outcome{State: StateNoToken}, &FlowExpiredError{Reason: "nothing pending for this state", Err: err}
		}
		return Outcome{State: StateNoToken}, exchangeError(err)
	}
	if err := m.store.SetToken(ctx, userID, token); err != nil {
		return Outcome{}, fmt.Errorf("failed to store token: %w", err)
	}
	logging.Info("Flow", "Stored token for user %s (scope=%q)", logging.TruncateID(userID), token.Scope)

	if cs.HasContinuation() {
		cont, ok, err := m.store.TakeContinuation(ctx, userID, cs.ContinuationKey)
		if err != nil {
			return Outcome{}, fmt.Errorf("failed to take continuation: %w", err)
		}
		if ok {
			return m.resume(ctx, cs, token, cont)
		}
		logging.Info("Flow", "Continuation %s for user %s is gone, resuming context instead",
			logging.TruncateID(cs.ContinuationKey), logging.TruncateID(userID))
	}

	c, ok, err := m.store.TakeContext(ctx, userID, cs.ContextKey)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to take action context: %w", err)
	}
	if !ok {
		logging.Info("Flow", "Context %s for user %s is gone", logging.TruncateID(cs.ContextKey), logging.TruncateID(userID))
		return Outcome{State: StateTokenPresent}, &FlowExpiredError{Reason: "action context no longer pending"}
	}

	if err := m.recordScope(ctx, userID, token, c.Scope); err != nil {
		return Outcome{}, err
	}
	return m.Main(ctx, c, StateResumingContext)
}

// pending reports whether the callback state still refers to parked work. Lookup
// failures count as pending so the exchange error is reported as is.
func (m *Machine) pending(ctx context.Context, cs oauth.CompositeState) bool {
	if cs.HasContinuation() {
		ok, err := m.store.HasContinuation(ctx, cs.UserID, cs.ContinuationKey)
		if err != nil || ok {
			return true
		}
	}
	ok, err := m.store.HasContext(ctx, cs.UserID, cs.ContextKey)
	return err != nil || ok
}

// Main is the handler for an authorized action. The context is re-registered under a
// fresh key, carried in Context.Key, so the rendered page can refer back to it when
// asking for a broader scope.
func (m *Machine) Main(ctx context.Context, c *action.Context, state State) (Outcome, error) {
	key, err := m.store.PutContext(ctx, c.UserID(), c)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to register action context: %w", err)
	}
	return Outcome{State: state, Context: c.WithKey(key)}, nil
}

// RequestEscalation parks cont next to the context stored under contextKey and sends
// the user to the provider for the scope cont needs. The scope already granted is
// requested again so the new token keeps it.
func (m *Machine) RequestEscalation(ctx context.Context, userID, contextKey string, cont action.Continuation) (Outcome, error) {
	if userID == "" || contextKey == "" {
		return Outcome{}, fmt.Errorf("%w: user id and state key are required", ErrInvalidRequest)
	}
	if err := cont.Validate(); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	var granted string
	current, ok, err := m.store.GetToken(ctx, userID)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to look up token: %w", err)
	}
	if ok {
		granted = current.Scope
	}

	cont.ContextKey = contextKey
	cont.Scope = action.MergeScopes(m.defaultScope, granted, cont.RequiredScope())

	key, err := m.store.PutContinuation(ctx, userID, cont)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to park continuation: %w", err)
	}

	state, err := oauth.EncodeState(userID, contextKey, key)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	logging.Info("Flow", "Escalating user %s for %s (continuation=%s, scope=%q)",
		logging.TruncateID(userID), cont, logging.TruncateID(key), cont.Scope)
	return m.redirect(ctx, state, cont.Scope)
}

// CreateAnalysis always goes through the provider for write access to the project,
// then creates the analysis, uploads a report into it and marks it complete.
func (m *Machine) CreateAnalysis(ctx context.Context, userID, stateKey, projectID, name string) (Outcome, error) {
	if name == "" {
		name = "scopegate analysis " + m.now().UTC().Format("2006-01-02 15:04")
	}
	cont := action.NewCreateAnalysis(stateKey, action.CreateAnalysis{
		ProjectID:   projectID,
		Name:        name,
		Description: "Created by scopegate",
	})
	return m.RequestEscalation(ctx, userID, stateKey, cont)
}

// SetAnalysisStatus goes through the provider for write access to the project, then
// changes the status of an existing analysis.
func (m *Machine) SetAnalysisStatus(ctx context.Context, userID, stateKey string, op action.SetAnalysisStatus) (Outcome, error) {
	return m.RequestEscalation(ctx, userID, stateKey, action.NewSetAnalysisStatus(stateKey, op))
}

// FetchResource proxies a GET of an API path with the user's token. Without a token
// it answers InvalidTokenBody and makes no outbound call.
func (m *Machine) FetchResource(ctx context.Context, userID, resource string) (int, []byte, error) {
	if userID == "" || resource == "" {
		return 0, nil, fmt.Errorf("%w: user id and resource are required", ErrInvalidRequest)
	}
	if resourceapi.IsAbsolute(resource) {
		return 0, nil, fmt.Errorf("%w: %v", ErrInvalidRequest, resourceapi.ErrAbsoluteURL)
	}

	token, ok, err := m.store.GetToken(ctx, userID)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to look up token: %w", err)
	}
	if !ok {
		return http.StatusUnauthorized, []byte(InvalidTokenBody), nil
	}
	warnIfExpired(userID, token)

	status, body, err := m.api.Call(ctx, http.MethodGet, resource, token.AccessToken.Value(), nil)
	if err != nil {
		return 0, nil, upstreamError("fetch resource", resource, err)
	}
	return status, body, nil
}

// resume runs a continuation taken from the registry. It has been removed already,
// so a replayed callback cannot run it again whether or not it succeeds.
func (m *Machine) resume(ctx context.Context, cs oauth.CompositeState, token *oauth.Token, cont action.Continuation) (Outcome, error) {
	userID := cs.UserID
	if err := m.recordScope(ctx, userID, token, cont.Scope); err != nil {
		return Outcome{}, err
	}

	logging.Info("Flow", "Resuming %s for user %s", cont, logging.TruncateID(userID))
	result, err := m.execute(ctx, token, cont)
	if err != nil {
		return Outcome{State: StateResumingContinuation}, err
	}
	result.UserID = userID

	out := Outcome{State: StateResumingContinuation, Result: result}

	contextKey := cont.ContextKey
	if contextKey == "" {
		contextKey = cs.ContextKey
	}
	c, ok, err := m.store.TakeContext(ctx, userID, contextKey)
	if err != nil {
		logging.Warn("Flow", "Failed to take context after %s: %v", cont.Kind, err)
		return out, nil
	}
	if ok {
		key, err := m.store.PutContext(ctx, userID, c)
		if err != nil {
			logging.Warn("Flow", "Failed to re-register context after %s: %v", cont.Kind, err)
			return out, nil
		}
		out.Context = c.WithKey(key)
	}
	return out, nil
}

// recordScope fills in the token's scope from what was requested when the provider
// did not report one.
func (m *Machine) recordScope(ctx context.Context, userID string, token *oauth.Token, requested string) error {
	if token.Scope != "" || requested == "" {
		return nil
	}
	token.Scope = requested
	if err := m.store.SetToken(ctx, userID, token); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// warnIfExpired logs a token past its expiry. Expiry is not enforced; the token is
// used until the provider or the API rejects it.
func warnIfExpired(userID string, token *oauth.Token) {
	if token.IsExpired(0) {
		logging.Warn("Flow", "Token for user %s expired at %s; using it anyway",
			logging.TruncateID(userID), token.ExpiresAt.UTC().Format(time.RFC3339))
	}
}

func (m *Machine) redirect(ctx context.Context, state, scope string) (Outcome, error) {
	url, err := m.broker.AuthorizeURL(ctx, state, scope)
	if err != nil {
		return Outcome{State: StateNoToken}, upstreamError("build authorization URL", "", err)
	}
	return Outcome{State: StateAwaitingCallback, RedirectURL: url}, nil
}
