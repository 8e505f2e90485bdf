// Package server exposes the authorization flow over HTTP.
//
// # Endpoints
//
//   - /trigger, /Home/Trigger - the multiplexed entry point. A request carrying
//     actionuri starts a flow, one carrying error reports a provider denial, and
//     one carrying state and code is the provider callback.
//   - /resource - proxies a GET of an API path with the user's stored token.
//   - /analyses - creates an analysis after a write-scope round-trip.
//   - /analyses/status - changes an analysis status after a write-scope round-trip.
//   - /health - liveness probe.
//
// Flow failures are rendered as HTML error pages, except on /resource which
// answers JSON. Typed flow errors choose the status code:
//
//	ProviderDeniedError   403
//	AuthExchangeError     502 (504 on timeout)
//	UpstreamFetchError    502 (504 on timeout)
//	FlowExpiredError      400
//	ErrInvalidRequest     400
//	anything else         500
package server
