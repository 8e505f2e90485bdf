// Package resourceapi is a small client for the genomics resource API that actions
// are launched from. It fetches action info with the application's own credentials
// and makes bearer-authenticated calls on behalf of users.
package resourceapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"scopegate/internal/action"
	"scopegate/pkg/logging"
)

const (
	// DefaultVersion is the API version prefix used for the calls this client builds.
	DefaultVersion = "v1pre3"

	// DefaultTimeout bounds each call when no HTTP client is supplied.
	DefaultTimeout = 30 * time.Second

	// maxResponseSize bounds how much of a response body is read.
	maxResponseSize = 32 << 20
)

// Config configures a Client.
type Config struct {
	// BaseURL is the API server, for example https://api.basespace.illumina.com.
	BaseURL string
	Version string

	// ClientID and ClientSecret authenticate action info fetches.
	ClientID     string
	ClientSecret string

	HTTPClient *http.Client
}

// Client talks to the resource API.
type Client struct {
	base         *url.URL
	baseURL      string
	version      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

// AppResult is an analysis as returned by the API.
type AppResult struct {
	ID            string `json:"Id"`
	Href          string `json:"Href"`
	Name          string `json:"Name"`
	Description   string `json:"Description"`
	Status        string `json:"Status"`
	StatusSummary string `json:"StatusSummary"`
}

// File is a file stored in an analysis.
type File struct {
	ID   string `json:"Id"`
	Href string `json:"Href"`
	Name string `json:"Name"`
	Size int64  `json:"Size"`
}

// NewClient creates a resource API client.
func NewClient(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("resourceapi: invalid base URL %q", cfg.BaseURL)
	}

	c := &Client{
		base:         u,
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		version:      strings.Trim(cfg.Version, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient:   cfg.HTTPClient,
	}
	if c.version == "" {
		c.version = DefaultVersion
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return c, nil
}

// BaseURL returns the API server URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// IsAbsolute reports whether ref names a full URL rather than an API path.
func IsAbsolute(ref string) bool {
	return strings.HasPrefix(strings.ToLower(ref), "http")
}

func (c *Client) resolve(path string) string {
	return c.baseURL + "/" + strings.TrimPrefix(path, "/")
}

// sameOrigin checks that ref has the scheme and host of the base URL, so client
// credentials never leave the API server.
func (c *Client) sameOrigin(ref string) error {
	u, err := url.Parse(ref)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrForeignHost, err)
	}
	if !strings.EqualFold(u.Scheme, c.base.Scheme) || !strings.EqualFold(u.Host, c.base.Host) {
		return fmt.Errorf("%w: %s://%s", ErrForeignHost, u.Scheme, u.Host)
	}
	return nil
}

// Call performs a bearer-authenticated request against an API path and returns the
// status and body of whatever response arrived. A non-nil body is sent as JSON.
// A non-2xx answer is also reported as a *StatusError, which keeps the headers.
func (c *Client) Call(ctx context.Context, method, path, token string, body []byte) (int, []byte, error) {
	if IsAbsolute(path) {
		return 0, nil, ErrAbsoluteURL
	}

	var contentType string
	if body != nil {
		contentType = "application/json"
	}
	resp, err := c.do(ctx, method, c.resolve(path), body, contentType, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	if err != nil {
		return 0, nil, err
	}
	return resp.status, resp.body, resp.check()
}

// FetchActionInfo retrieves and parses the action a user launched. It authenticates
// with the application's client credentials since no user token exists yet. An
// absolute actionURI must point at the API server itself; anything else is appended
// to the base URL.
func (c *Client) FetchActionInfo(ctx context.Context, actionURI string) (*action.Context, error) {
	target := c.resolve(actionURI)
	if IsAbsolute(actionURI) {
		if err := c.sameOrigin(actionURI); err != nil {
			return nil, err
		}
		target = actionURI
	}

	resp, err := c.do(ctx, http.MethodGet, target, nil, "application/json", func(r *http.Request) {
		r.SetBasicAuth(c.clientID, c.clientSecret)
	})
	if err != nil {
		return nil, err
	}
	if err := resp.check(); err != nil {
		return nil, err
	}

	return ParseActionInfo(resp.body)
}

// CreateAnalysis creates an analysis in a project.
func (c *Client) CreateAnalysis(ctx context.Context, token, projectID, name, description string) (*AppResult, error) {
	payload, err := json.Marshal(map[string]string{"Name": name, "Description": description})
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("%s/projects/%s/appresults", c.version, url.PathEscape(projectID))
	var out envelope[AppResult]
	if err := c.bearerJSON(ctx, http.MethodPost, path, token, payload, "application/json", &out); err != nil {
		return nil, err
	}
	return &out.Response, nil
}

// UploadFile stores data as a file in an analysis.
func (c *Client) UploadFile(ctx context.Context, token, analysisID, name, directory, contentType string, data []byte) (*File, error) {
	q := url.Values{}
	q.Set("name", name)
	q.Set("directory", directory)
	path := fmt.Sprintf("%s/appresults/%s/files?%s", c.version, url.PathEscape(analysisID), q.Encode())

	var out envelope[File]
	if err := c.bearerJSON(ctx, http.MethodPost, path, token, data, contentType, &out); err != nil {
		return nil, err
	}
	return &out.Response, nil
}

// SetAnalysisStatus changes the status of an analysis.
func (c *Client) SetAnalysisStatus(ctx context.Context, token, analysisID, status, summary string) (*AppResult, error) {
	payload, err := json.Marshal(map[string]string{"Status": status, "StatusSummary": summary})
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("%s/appresults/%s", c.version, url.PathEscape(analysisID))
	var out envelope[AppResult]
	if err := c.bearerJSON(ctx, http.MethodPost, path, token, payload, "application/json", &out); err != nil {
		return nil, err
	}
	return &out.Response, nil
}

func (c *Client) bearerJSON(ctx context.Context, method, path, token string, body []byte, contentType string, out any) error {
	resp, err := c.do(ctx, method, c.resolve(path), body, contentType, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	if err != nil {
		return err
	}
	if err := resp.check(); err != nil {
		return err
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("failed to decode response from %s %s: %w", method, resp.url, err)
	}
	return nil
}

type response struct {
	method string
	url    string
	status int
	header http.Header
	body   []byte
}

func (r *response) check() error {
	if r.status >= 200 && r.status < 300 {
		return nil
	}
	return &StatusError{Method: r.method, URL: r.url, Status: r.status, Body: r.body, Header: r.header}
}

func (c *Client) do(ctx context.Context, method, target string, body []byte, contentType string, auth func(*http.Request)) (*response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	auth(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s %s: %w", method, target, err)
	}

	logging.Debug("ResourceAPI", "%s %s -> %d (%v)", method, target, resp.StatusCode, time.Since(start))

	return &response{
		method: method,
		url:    target,
		status: resp.StatusCode,
		header: resp.Header,
		body:   data,
	}, nil
}
