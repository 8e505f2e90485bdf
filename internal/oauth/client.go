package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"scopegate/pkg/logging"
	pkgstrings "scopegate/pkg/strings"
)

// metadataCacheTTL is the time-to-live for discovered authorization server metadata.
const metadataCacheTTL = 30 * time.Minute

// maxTokenResponseSize bounds how much of a token endpoint response is buffered.
const maxTokenResponseSize = 1 << 20

// DefaultHTTPTimeout bounds every call to the provider when no client is supplied.
const DefaultHTTPTimeout = 30 * time.Second

// Supported ways of presenting client credentials to the token endpoint.
const (
	AuthStyleParams = "params"
	AuthStyleHeader = "header"
	AuthStyleAuto   = "auto"
)

// metadataCacheEntry holds cached OAuth metadata with its timestamp.
type metadataCacheEntry struct {
	metadata  *OAuthMetadata
	fetchedAt time.Time
}

// ClientConfig configures the token broker.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// AuthorizeURL and TokenURL are the provider endpoints. When both are empty they
	// are discovered from Issuer.
	AuthorizeURL string
	TokenURL     string
	Issuer       string

	// AuthStyle is one of AuthStyleParams (default), AuthStyleHeader or AuthStyleAuto.
	// It must match the method registered with the provider.
	AuthStyle string

	// HTTPClient is used for discovery and token exchange.
	HTTPClient *http.Client
}

// Client performs the two OAuth exchanges of the authorization-code flow: building
// the authorization redirect and trading the returned code for an access token.
type Client struct {
	clientID     string
	clientSecret string
	redirectURI  string
	authStyle    oauth2.AuthStyle

	staticEndpoint *oauth2.Endpoint
	issuer         string

	httpClient *http.Client

	// Metadata cache (issuer URL -> metadata entry) with mutex for thread safety
	metadataMu    sync.RWMutex
	metadataCache map[string]*metadataCacheEntry

	// singleflight group to deduplicate concurrent metadata fetches
	metadataGroup singleflight.Group
}

// NewClient creates a token broker. Either both endpoints or an issuer must be set.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("oauth: client id is required")
	}
	if cfg.RedirectURI == "" {
		return nil, errors.New("oauth: redirect uri is required")
	}

	style, err := parseAuthStyle(cfg.AuthStyle)
	if err != nil {
		return nil, err
	}

	c := &Client{
		clientID:      cfg.ClientID,
		clientSecret:  cfg.ClientSecret,
		redirectURI:   cfg.RedirectURI,
		authStyle:     style,
		issuer:        strings.TrimSuffix(cfg.Issuer, "/"),
		httpClient:    cfg.HTTPClient,
		metadataCache: make(map[string]*metadataCacheEntry),
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}

	switch {
	case cfg.AuthorizeURL != "" && cfg.TokenURL != "":
		c.staticEndpoint = &oauth2.Endpoint{
			AuthURL:   cfg.AuthorizeURL,
			TokenURL:  cfg.TokenURL,
			AuthStyle: style,
		}
	case c.issuer != "":
		logging.Info("OAuth", "Provider endpoints will be discovered from issuer %s", c.issuer)
	default:
		return nil, errors.New("oauth: either authorize and token URLs or an issuer is required")
	}

	return c, nil
}

func parseAuthStyle(s string) (oauth2.AuthStyle, error) {
	switch strings.ToLower(s) {
	case "", AuthStyleParams:
		return oauth2.AuthStyleInParams, nil
	case AuthStyleHeader:
		return oauth2.AuthStyleInHeader, nil
	case AuthStyleAuto:
		return oauth2.AuthStyleAutoDetect, nil
	default:
		return 0, fmt.Errorf("oauth: unknown auth style %q", s)
	}
}

// RedirectURI returns the callback URL registered with the provider.
func (c *Client) RedirectURI() string {
	return c.redirectURI
}

// AuthorizeURL builds the provider authorization URL carrying state and scope.
// It performs no I/O when the endpoints are configured statically.
func (c *Client) AuthorizeURL(ctx context.Context, state, scope string) (string, error) {
	conf, err := c.config(ctx)
	if err != nil {
		return "", err
	}

	var opts []oauth2.AuthCodeOption
	if scope != "" {
		// Provider scopes contain spaces, so they are passed verbatim rather than
		// through Config.Scopes, which would space-join them.
		opts = append(opts, oauth2.SetAuthURLParam("scope", scope))
	}

	return conf.AuthCodeURL(state, opts...), nil
}

// Exchange trades an authorization code for an access token. Token.Scope is empty
// when the provider does not report the granted scope.
//
// Every failure is an *AuthError carrying whatever status and body were received.
func (c *Client) Exchange(ctx context.Context, code string) (*Token, error) {
	if code == "" {
		return nil, &AuthError{Err: errors.New("authorization code is empty")}
	}

	conf, err := c.config(ctx)
	if err != nil {
		return nil, &AuthError{Err: err}
	}

	capture := &responseCapture{base: c.httpClient.Transport}
	hc := *c.httpClient
	hc.Transport = capture
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &hc)

	start := time.Now()
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		authErr := &AuthError{Status: capture.status, Body: capture.body, Err: err}
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			if re.Response != nil {
				authErr.Status = re.Response.StatusCode
			}
			authErr.Body = string(re.Body)
		}
		logging.Debug("OAuth", "Token exchange failed: status=%d body=%s",
			authErr.Status, pkgstrings.Diagnostic([]byte(authErr.Body)))
		return nil, authErr
	}

	token := tokenFromOAuth2(tok)
	logging.Debug("OAuth", "Exchanged code for token in %v (expires: %v)", time.Since(start), token.ExpiresAt)

	return token, nil
}

// config assembles the oauth2.Config, resolving endpoints from the issuer if needed.
func (c *Client) config(ctx context.Context) (*oauth2.Config, error) {
	endpoint, err := c.endpoint(ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		RedirectURL:  c.redirectURI,
		Endpoint:     endpoint,
	}, nil
}

func (c *Client) endpoint(ctx context.Context) (oauth2.Endpoint, error) {
	if c.staticEndpoint != nil {
		return *c.staticEndpoint, nil
	}

	metadata, err := c.fetchMetadata(ctx, c.issuer)
	if err != nil {
		return oauth2.Endpoint{}, fmt.Errorf("failed to fetch OAuth metadata: %w", err)
	}
	return oauth2.Endpoint{
		AuthURL:   metadata.AuthorizationEndpoint,
		TokenURL:  metadata.TokenEndpoint,
		AuthStyle: c.authStyle,
	}, nil
}

// fetchMetadata fetches OAuth metadata from the issuer's well-known endpoint.
// Uses singleflight to deduplicate concurrent requests for the same issuer.
func (c *Client) fetchMetadata(ctx context.Context, issuer string) (*OAuthMetadata, error) {
	if m := c.cachedMetadata(issuer); m != nil {
		return m, nil
	}

	result, err, _ := c.metadataGroup.Do(issuer, func() (interface{}, error) {
		// Double-check cache after acquiring the singleflight lock
		if m := c.cachedMetadata(issuer); m != nil {
			return m, nil
		}
		return c.doFetchMetadata(ctx, issuer)
	})
	if err != nil {
		return nil, err
	}

	return result.(*OAuthMetadata), nil
}

func (c *Client) cachedMetadata(issuer string) *OAuthMetadata {
	c.metadataMu.RLock()
	defer c.metadataMu.RUnlock()

	entry, ok := c.metadataCache[issuer]
	if !ok || time.Since(entry.fetchedAt) >= metadataCacheTTL {
		return nil
	}
	return entry.metadata
}

// doFetchMetadata performs the HTTP fetch, trying RFC 8414 first and OpenID Connect
// discovery second.
func (c *Client) doFetchMetadata(ctx context.Context, issuer string) (*OAuthMetadata, error) {
	var lastErr error
	for _, suffix := range []string{"/.well-known/oauth-authorization-server", "/.well-known/openid-configuration"} {
		metadata, err := c.getMetadata(ctx, issuer+suffix)
		if err != nil {
			lastErr = err
			continue
		}

		c.metadataMu.Lock()
		c.metadataCache[issuer] = &metadataCacheEntry{metadata: metadata, fetchedAt: time.Now()}
		c.metadataMu.Unlock()

		logging.Debug("OAuth", "Fetched OAuth metadata for issuer=%s (auth=%s, token=%s)",
			issuer, metadata.AuthorizationEndpoint, metadata.TokenEndpoint)
		return metadata, nil
	}
	return nil, lastErr
}

func (c *Client) getMetadata(ctx context.Context, wellKnownURL string) (*OAuthMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wellKnownURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata endpoint %s returned status %d", wellKnownURL, resp.StatusCode)
	}

	var metadata OAuthMetadata
	if err := json.NewDecoder(resp.Body).Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to parse OAuth metadata: %w", err)
	}
	if metadata.AuthorizationEndpoint == "" || metadata.TokenEndpoint == "" {
		return nil, fmt.Errorf("metadata at %s lacks authorization or token endpoint", wellKnownURL)
	}
	return &metadata, nil
}

// responseCapture remembers the status and body of the last response it carried,
// so that failures x/oauth2 reports without a RetrieveError (a 200 with a malformed
// body, or one missing access_token) still surface the raw response.
type responseCapture struct {
	base http.RoundTripper

	status int
	body   string
}

func (rc *responseCapture) RoundTrip(req *http.Request) (*http.Response, error) {
	base := rc.base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseSize))
	resp.Body.Close()
	if err != nil {
		return nil, err
	}

	rc.status = resp.StatusCode
	rc.body = string(body)
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}
