package resourceapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient(Config{
		BaseURL:      server.URL + "/",
		ClientID:     "app-id",
		ClientSecret: "app-secret",
	})
	require.NoError(t, err)
	return c, server
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	for _, base := range []string{"", "not a url", "/relative"} {
		_, err := NewClient(Config{BaseURL: base})
		assert.Error(t, err, "base %q", base)
	}
}

func TestClient_FetchActionInfo_UsesBasicAuth(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "app-id", user)
		assert.Equal(t, "app-secret", pass)
		assert.Equal(t, "/v1pre3/actions/42", r.URL.Path)
		_, _ = io.WriteString(w, sampleActionInfo)
	})

	ctx, err := c.FetchActionInfo(context.Background(), "/v1pre3/actions/42")
	require.NoError(t, err)
	assert.Equal(t, "1463464", ctx.UserID())
}

func TestClient_FetchActionInfo_AbsoluteURIOnAPIServer(t *testing.T) {
	c, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, pass, _ := r.BasicAuth()
		assert.Equal(t, "app-secret", pass)
		assert.Equal(t, "/v1pre3/actions/42", r.URL.Path)
		_, _ = io.WriteString(w, sampleActionInfo)
	})

	ctx, err := c.FetchActionInfo(context.Background(), server.URL+"/v1pre3/actions/42")
	require.NoError(t, err)
	assert.Equal(t, "1463464", ctx.UserID())
}

func TestClient_FetchActionInfo_ForeignHostRejected(t *testing.T) {
	var foreignHits atomic.Int32
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		foreignHits.Add(1)
		_, _ = io.WriteString(w, sampleActionInfo)
	}))
	defer foreign.Close()

	c, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request is expected for a rejected action uri")
	})

	tests := []struct {
		name string
		uri  string
	}{
		{name: "other server", uri: foreign.URL + "/v1pre3/actions/42"},
		{name: "userinfo trick", uri: "http://" + server.Listener.Addr().String() + "@" + foreign.Listener.Addr().String() + "/x"},
		{name: "scheme change", uri: "https://" + server.Listener.Addr().String() + "/v1pre3/actions/42"},
		{name: "not a url", uri: "httpfoo"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.FetchActionInfo(context.Background(), tc.uri)
			assert.ErrorIs(t, err, ErrForeignHost)
		})
	}
	assert.Zero(t, foreignHits.Load(), "client credentials must not reach another host")
}

func TestClient_FetchActionInfo_StatusError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"ResponseStatus":{"ErrorCode":"NotFound"}}`)
	})

	_, err := c.FetchActionInfo(context.Background(), "/v1pre3/actions/missing")

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.Status)
	assert.Equal(t, http.MethodGet, statusErr.Method)
	assert.Contains(t, string(statusErr.Body), "NotFound")
}

func TestClient_Call(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/v1pre3/projects/2", r.URL.Path)
		w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope", scope="read project 2"`)
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"denied":true}`)
	})

	status, body, err := c.Call(context.Background(), http.MethodGet, "v1pre3/projects/2", "user-token", nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.JSONEq(t, `{"denied":true}`, string(body))

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, `Bearer error="insufficient_scope", scope="read project 2"`, statusErr.Header.Get("WWW-Authenticate"))
}

func TestClient_Call_RejectsAbsoluteURL(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, _, err := c.Call(context.Background(), http.MethodGet, "https://evil.example.com/x", "tok", nil)
	assert.ErrorIs(t, err, ErrAbsoluteURL)
}

func TestClient_AnalysisSequence(t *testing.T) {
	var calls []string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		calls = append(calls, r.Method+" "+r.URL.Path)
		body, _ := io.ReadAll(r.Body)

		switch r.URL.Path {
		case "/v1pre3/projects/2/appresults":
			assert.JSONEq(t, `{"Name":"Report","Description":"made by scopegate"}`, string(body))
			_, _ = io.WriteString(w, `{"Response":{"Id":"a9","Href":"v1pre3/appresults/a9","Name":"Report","Status":"Running"}}`)
		case "/v1pre3/appresults/a9/files":
			assert.Equal(t, "report.txt", r.URL.Query().Get("name"))
			assert.Equal(t, "out", r.URL.Query().Get("directory"))
			assert.Equal(t, "text/plain", r.Header.Get("Content-Type"))
			assert.Equal(t, "hello", string(body))
			_, _ = io.WriteString(w, `{"Response":{"Id":"f1","Name":"report.txt","Size":5}}`)
		case "/v1pre3/appresults/a9":
			assert.JSONEq(t, `{"Status":"Complete","StatusSummary":"done"}`, string(body))
			_, _ = io.WriteString(w, `{"Response":{"Id":"a9","Status":"Complete","StatusSummary":"done"}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	ar, err := c.CreateAnalysis(ctx, "tok", "2", "Report", "made by scopegate")
	require.NoError(t, err)
	assert.Equal(t, "a9", ar.ID)
	assert.Equal(t, "Running", ar.Status)

	f, err := c.UploadFile(ctx, "tok", ar.ID, "report.txt", "out", "text/plain", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), f.Size)

	ar, err = c.SetAnalysisStatus(ctx, "tok", ar.ID, "Complete", "done")
	require.NoError(t, err)
	assert.Equal(t, "Complete", ar.Status)

	assert.Equal(t, []string{
		"POST /v1pre3/projects/2/appresults",
		"POST /v1pre3/appresults/a9/files",
		"POST /v1pre3/appresults/a9",
	}, calls)
}

func TestClient_Timeout(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := c.Call(ctx, http.MethodGet, "v1pre3/users/current", "tok", nil)
	require.Error(t, err)
	assert.True(t, IsTimeout(err), "got %v", err)
}

func TestIsTimeout(t *testing.T) {
	assert.False(t, IsTimeout(nil))
	assert.False(t, IsTimeout(errors.New("boom")))
	assert.True(t, IsTimeout(context.DeadlineExceeded))
}
