package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scopegate/internal/action"
	"scopegate/internal/flow"
	"scopegate/internal/resourceapi"
	"scopegate/internal/view"
)

type fakeFlow struct {
	trigger  func(flow.TriggerRequest) (flow.Outcome, error)
	fetch    func(userID, resource string) (int, []byte, error)
	create   func(userID, stateKey, projectID, name string) (flow.Outcome, error)
	setState func(userID, stateKey string, op action.SetAnalysisStatus) (flow.Outcome, error)
}

func (f *fakeFlow) Trigger(_ context.Context, req flow.TriggerRequest) (flow.Outcome, error) {
	return f.trigger(req)
}

func (f *fakeFlow) FetchResource(_ context.Context, userID, resource string) (int, []byte, error) {
	return f.fetch(userID, resource)
}

func (f *fakeFlow) CreateAnalysis(_ context.Context, userID, stateKey, projectID, name string) (flow.Outcome, error) {
	return f.create(userID, stateKey, projectID, name)
}

func (f *fakeFlow) SetAnalysisStatus(_ context.Context, userID, stateKey string, op action.SetAnalysisStatus) (flow.Outcome, error) {
	return f.setState(userID, stateKey, op)
}

func newTestServer(t *testing.T, f Flow) *httptest.Server {
	t.Helper()
	views, err := view.NewRenderer()
	require.NoError(t, err)

	srv := httptest.NewServer(New(Config{RequestTimeout: 5 * time.Second}, f, views).Router())
	t.Cleanup(srv.Close)
	return srv
}

func noRedirect() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	var sb bytes.Buffer
	_, err := sb.ReadFrom(resp.Body)
	require.NoError(t, err)
	return sb.String()
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeFlow{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, readBody(t, resp))
}

func TestTrigger_PassesFieldsAndRedirects(t *testing.T) {
	var got flow.TriggerRequest
	srv := newTestServer(t, &fakeFlow{trigger: func(req flow.TriggerRequest) (flow.Outcome, error) {
		got = req
		return flow.Outcome{State: flow.StateAwaitingCallback, RedirectURL: "https://provider.test/authorize?state=x"}, nil
	}})

	for _, path := range []string{"/trigger", "/Home/Trigger"} {
		t.Run("GET "+path, func(t *testing.T) {
			resp, err := noRedirect().Get(srv.URL + path + "?action=Launch&actionuri=v1pre3/actions/1&returnuri=https://app.test/back")
			require.NoError(t, err)
			resp.Body.Close()

			assert.Equal(t, http.StatusFound, resp.StatusCode)
			assert.Equal(t, "https://provider.test/authorize?state=x", resp.Header.Get("Location"))
			assert.Equal(t, flow.TriggerRequest{
				Action:    "Launch",
				ActionURI: "v1pre3/actions/1",
				ReturnURI: "https://app.test/back",
			}, got)
		})
	}

	t.Run("POST form", func(t *testing.T) {
		resp, err := noRedirect().PostForm(srv.URL+"/trigger", url.Values{
			"state": {"u1:k1"},
			"code":  {"c1"},
		})
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "u1:k1", got.State)
		assert.Equal(t, "c1", got.Code)
	})
}

func TestTrigger_RendersContextPage(t *testing.T) {
	c := &action.Context{
		Key:      "k2",
		User:     action.User{ID: "u1", Name: "Ada"},
		Projects: []action.Project{{ID: "p1", Name: "Phix", Href: "v1pre3/projects/p1"}},
	}
	srv := newTestServer(t, &fakeFlow{trigger: func(flow.TriggerRequest) (flow.Outcome, error) {
		return flow.Outcome{State: flow.StateResumingContext, Context: c}, nil
	}})

	resp, err := http.Get(srv.URL + "/trigger?state=u1:k1&code=c")
	require.NoError(t, err)
	body := readBody(t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Contains(t, body, "Phix")
	assert.Contains(t, body, `value="k2"`)
}

func TestTrigger_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantText   string
	}{
		{
			name:       "provider denied",
			err:        &flow.ProviderDeniedError{Code: "access_denied", Description: "user said no"},
			wantStatus: http.StatusForbidden,
			wantText:   "Auth failed: error: access_denied, error_description: user said no",
		},
		{
			name:       "exchange failed",
			err:        &flow.AuthExchangeError{Status: 400, Body: `{"error":"invalid_grant"}`},
			wantStatus: http.StatusBadGateway,
			wantText:   "invalid_grant",
		},
		{
			name:       "upstream failed",
			err:        &flow.UpstreamFetchError{Step: "fetch action info", URL: "https://api.test/x", Status: 500, Body: "boom"},
			wantStatus: http.StatusBadGateway,
			wantText:   "fetch action info",
		},
		{
			name:       "upstream timed out",
			err:        &flow.UpstreamFetchError{Step: "fetch action info", Retryable: true, Err: context.DeadlineExceeded},
			wantStatus: http.StatusGatewayTimeout,
			wantText:   "try again",
		},
		{
			name:       "flow expired",
			err:        &flow.FlowExpiredError{Reason: "action context no longer pending"},
			wantStatus: http.StatusBadRequest,
			wantText:   "Your session expired, please restart",
		},
		{
			name:       "invalid request",
			err:        flow.ErrInvalidRequest,
			wantStatus: http.StatusBadRequest,
			wantText:   "invalid request",
		},
		{
			name:       "unexpected",
			err:        errors.New("store exploded"),
			wantStatus: http.StatusInternalServerError,
			wantText:   "Something went wrong",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeFlow{trigger: func(flow.TriggerRequest) (flow.Outcome, error) {
				return flow.Outcome{}, tt.err
			}})

			resp, err := http.Get(srv.URL + "/trigger?state=s&code=c")
			require.NoError(t, err)
			body := readBody(t, resp)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Contains(t, body, tt.wantText)
			assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
			assert.NotContains(t, body, "store exploded")
		})
	}
}

func TestResource(t *testing.T) {
	t.Run("passes body through", func(t *testing.T) {
		srv := newTestServer(t, &fakeFlow{fetch: func(userID, resource string) (int, []byte, error) {
			assert.Equal(t, "u1", userID)
			assert.Equal(t, "v1pre3/projects/p1", resource)
			return http.StatusOK, []byte(`{"Response":{"Id":"p1"}}`), nil
		}})

		resp, err := http.Get(srv.URL + view.ResourceURL("u1", "v1pre3/projects/p1"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		assert.JSONEq(t, `{"Response":{"Id":"p1"}}`, readBody(t, resp))
	})

	t.Run("upstream status passes through", func(t *testing.T) {
		srv := newTestServer(t, &fakeFlow{fetch: func(string, string) (int, []byte, error) {
			return 0, nil, &flow.UpstreamFetchError{Step: "fetch resource", Status: http.StatusForbidden, Body: `{"ResponseStatus":{"Message":"no"}}`}
		}})

		resp, err := http.Get(srv.URL + view.ResourceURL("u1", "v1pre3/projects/p1"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.JSONEq(t, `{"ResponseStatus":{"Message":"no"}}`, readBody(t, resp))
	})

	t.Run("invalid request is json", func(t *testing.T) {
		srv := newTestServer(t, &fakeFlow{fetch: func(string, string) (int, []byte, error) {
			return 0, nil, flow.ErrInvalidRequest
		}})

		resp, err := http.Get(srv.URL + "/resource")
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		assert.Contains(t, readBody(t, resp), `"error"`)
	})
}

func TestCreateAnalysis_Form(t *testing.T) {
	var got []string
	srv := newTestServer(t, &fakeFlow{create: func(userID, stateKey, projectID, name string) (flow.Outcome, error) {
		got = []string{userID, stateKey, projectID, name}
		return flow.Outcome{RedirectURL: "https://provider.test/authorize"}, nil
	}})

	resp, err := noRedirect().PostForm(srv.URL+"/analyses", url.Values{
		"userId":    {"u1"},
		"stateKey":  {"k1"},
		"projectId": {"p1"},
		"name":      {"My analysis"},
	})
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, []string{"u1", "k1", "p1", "My analysis"}, got)
}

func TestSetAnalysisStatus_RendersResult(t *testing.T) {
	var got action.SetAnalysisStatus
	srv := newTestServer(t, &fakeFlow{setState: func(userID, stateKey string, op action.SetAnalysisStatus) (flow.Outcome, error) {
		got = op
		return flow.Outcome{State: flow.StateResumingContinuation, Result: &flow.Result{
			UserID:       userID,
			Continuation: action.NewSetAnalysisStatus(stateKey, op),
			Analysis:     &resourceapi.AppResult{ID: op.AnalysisID, Name: "Reseq", Status: op.Status},
		}}, nil
	}})

	resp, err := http.PostForm(srv.URL+"/analyses/status", url.Values{
		"userId":     {"u1"},
		"stateKey":   {"k1"},
		"projectId":  {"p1"},
		"analysisId": {"a1"},
		"status":     {action.StatusAborted},
		"summary":    {"stopped"},
	})
	require.NoError(t, err)
	body := readBody(t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, action.SetAnalysisStatus{ProjectID: "p1", AnalysisID: "a1", Status: action.StatusAborted, Summary: "stopped"}, got)
	assert.Contains(t, body, "Analysis status updated")
	assert.Contains(t, body, "Reseq")
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t, &fakeFlow{})

	resp, err := http.Get(srv.URL + "/analyses")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
