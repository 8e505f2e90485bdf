package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"scopegate/internal/flow"
	"scopegate/internal/view"
	"scopegate/pkg/logging"
	pkgstrings "scopegate/pkg/strings"
)

var errNoOutcome = errors.New("flow step produced nothing to render")

func badRequest(err error) error {
	return fmt.Errorf("%w: %v", flow.ErrInvalidRequest, err)
}

// classify maps a flow error to the response status and the page explaining it.
func classify(err error) (int, view.ErrorPage) {
	var (
		denied   *flow.ProviderDeniedError
		exchange *flow.AuthExchangeError
		upstream *flow.UpstreamFetchError
		expired  *flow.FlowExpiredError
	)

	switch {
	case errors.As(err, &denied):
		return http.StatusForbidden, view.ErrorPage{
			Title:   "Authorization denied",
			Message: denied.Error(),
		}
	case errors.As(err, &exchange):
		return gatewayStatus(exchange.Retryable), view.ErrorPage{
			Title:          "Authorization failed",
			Message:        "The provider did not issue an access token.",
			Step:           "exchange authorization code",
			UpstreamStatus: exchange.Status,
			Body:           pkgstrings.Diagnostic([]byte(exchange.Body)),
		}
	case errors.As(err, &upstream):
		page := view.ErrorPage{
			Title:          "Upstream request failed",
			Message:        "A request to the resource API did not succeed.",
			Step:           upstream.Step,
			URL:            upstream.URL,
			UpstreamStatus: upstream.Status,
			Body:           pkgstrings.Diagnostic([]byte(upstream.Body)),
		}
		if upstream.Retryable {
			page.Message = "The resource API did not answer in time. Please try again."
		}
		return gatewayStatus(upstream.Retryable), page
	case errors.As(err, &expired):
		return http.StatusBadRequest, view.ErrorPage{
			Title:   "Session expired",
			Message: "Your session expired, please restart.",
		}
	case errors.Is(err, flow.ErrInvalidRequest):
		return http.StatusBadRequest, view.ErrorPage{
			Title:   "Bad request",
			Message: err.Error(),
		}
	default:
		return http.StatusInternalServerError, view.ErrorPage{
			Title:   "Internal error",
			Message: "Something went wrong. Please try again later.",
		}
	}
}

func gatewayStatus(retryable bool) int {
	if retryable {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func (s *HTTPServer) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status, page := classify(err)
	logError(r, status, err)
	s.views.Error(w, status, page)
}

// writeResourceError answers a failed resource fetch. An API that answered with an
// error status has its status and body passed through; other failures become a
// JSON error object.
func writeResourceError(w http.ResponseWriter, r *http.Request, err error) {
	var upstream *flow.UpstreamFetchError
	if errors.As(err, &upstream) && upstream.Status != 0 {
		logging.Debug("Server", "Resource %s answered %d", upstream.URL, upstream.Status)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(upstream.Status)
		_, _ = w.Write([]byte(upstream.Body))
		return
	}

	status, page := classify(err)
	logError(r, status, err)

	message := page.Message
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func logError(r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		logging.Error("Server", err, "%s %s failed with %d", r.Method, r.URL.Path, status)
		return
	}
	logging.Warn("Server", "%s %s rejected with %d: %v", r.Method, r.URL.Path, status, err)
}
