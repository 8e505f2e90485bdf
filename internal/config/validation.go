package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"scopegate/pkg/logging"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// Validate reports every configuration problem at once. The returned error wraps
// ErrInvalidConfig and a ValidationErrors.
func (c Config) Validate() error {
	var errs ValidationErrors

	if strings.TrimSpace(c.Server.Listen) == "" {
		errs.Add("server.listen", "is required")
	}
	validateAbsoluteURL(&errs, "server.publicURL", c.Server.PublicURL)
	validatePositive(&errs, "server.requestTimeout", c.Server.RequestTimeout)
	validatePositive(&errs, "server.readHeaderTimeout", c.Server.ReadHeaderTimeout)
	validatePositive(&errs, "server.shutdownTimeout", c.Server.ShutdownTimeout)

	if strings.TrimSpace(c.OAuth.ClientID) == "" {
		errs.Add("oauth.clientID", "is required")
	}
	if c.OAuth.ClientSecret == "" {
		errs.Add("oauth.clientSecret", "is required")
	}
	switch {
	case c.OAuth.AuthorizeURL != "" || c.OAuth.TokenURL != "":
		validateAbsoluteURL(&errs, "oauth.authorizeURL", c.OAuth.AuthorizeURL)
		validateAbsoluteURL(&errs, "oauth.tokenURL", c.OAuth.TokenURL)
	case c.OAuth.Issuer != "":
		validateAbsoluteURL(&errs, "oauth.issuer", c.OAuth.Issuer)
	default:
		errs.Add("oauth", "either authorizeURL and tokenURL or issuer is required")
	}
	validateAbsoluteURL(&errs, "oauth.redirectURI", c.OAuth.RedirectURI)
	validateOneOf(&errs, "oauth.authStyle", c.OAuth.AuthStyle, "params", "header", "auto")

	validateAbsoluteURL(&errs, "api.baseURL", c.API.BaseURL)
	if c.API.Version == "" {
		errs.Add("api.version", "is required")
	}
	validatePositive(&errs, "api.timeout", c.API.Timeout)

	validateOneOf(&errs, "store.backend", c.Store.Backend, BackendMemory, BackendRedis)
	if c.Store.PendingTTL < 0 {
		errs.Add("store.pendingTTL", "must not be negative", c.Store.PendingTTL.String())
	}
	if c.Store.Backend == BackendRedis && c.Store.Redis.URL == "" {
		errs.Add("store.redis.url", "is required when store.backend is redis")
	}

	if _, ok := logging.ParseLevel(c.Logging.Level); !ok {
		errs.Add("logging.level", "must be one of: debug, info, warn, error", c.Logging.Level)
	}
	validateOneOf(&errs, "logging.format", c.Logging.Format, logging.FormatText, logging.FormatJSON)

	if errs.HasErrors() {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errs)
	}
	return nil
}

func validateAbsoluteURL(errs *ValidationErrors, field, value string) {
	if value == "" {
		errs.Add(field, "is required")
		return
	}
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs.Add(field, "must be an absolute http(s) URL", value)
	}
}

func validatePositive(errs *ValidationErrors, field string, d time.Duration) {
	if d <= 0 {
		errs.Add(field, "must be positive")
	}
}

func validateOneOf(errs *ValidationErrors, field, value string, allowed ...string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	errs.Add(field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")), value)
}
