// Package view renders the HTML pages scopegate shows to end users.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"scopegate/internal/action"
	"scopegate/internal/resourceapi"
	"scopegate/pkg/logging"
)

//go:embed templates/*.html
var templateFS embed.FS

// ResourcePath is the route that proxies resource fetches for a user.
const ResourcePath = "/resource"

// ContextPage is the main page for an authorized action.
type ContextPage struct {
	Context  *action.Context
	Statuses []string
}

// ResultPage reports a continuation that ran.
type ResultPage struct {
	Title    string
	UserID   string
	Analysis *resourceapi.AppResult
	File     *resourceapi.File
	Context  *action.Context
}

// ErrorPage explains a failure. Step, URL, UpstreamStatus and Body are shown when set.
type ErrorPage struct {
	Title          string
	Message        string
	Step           string
	URL            string
	UpstreamStatus int
	Body           string
}

type hrefData struct {
	UserID string
	Href   string
}

// Renderer executes the embedded templates.
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	funcs := template.FuncMap{
		"link":        func(userID, href string) hrefData { return hrefData{UserID: userID, Href: href} },
		"linkable":    Linkable,
		"resourceURL": ResourceURL,
	}

	t, err := template.New("scopegate").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{templates: t}, nil
}

// Linkable reports whether an API href should be offered as a fetch link. Download
// links for file content are left as plain text.
func Linkable(href string) bool {
	return href != "" && !strings.HasSuffix(href, "content")
}

// ResourceURL builds the local URL that fetches href on behalf of userID.
func ResourceURL(userID, href string) string {
	q := url.Values{}
	q.Set("userId", userID)
	q.Set("resource", href)
	return ResourcePath + "?" + q.Encode()
}

// Context renders the main page of an action.
func (r *Renderer) Context(w http.ResponseWriter, status int, page ContextPage) {
	if page.Statuses == nil {
		page.Statuses = []string{
			action.StatusRunning, action.StatusComplete, action.StatusNeedsAttention,
			action.StatusTimedOut, action.StatusAborted,
		}
	}
	r.render(w, status, "context.html", page)
}

// Result renders the outcome of a continuation.
func (r *Renderer) Result(w http.ResponseWriter, status int, page ResultPage) {
	r.render(w, status, "result.html", page)
}

// Error renders an error page.
func (r *Renderer) Error(w http.ResponseWriter, status int, page ErrorPage) {
	r.render(w, status, "error.html", page)
}

func (r *Renderer) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		logging.Error("View", err, "Failed to render %s", name)
		SetSecurityHeaders(w)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	SetSecurityHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// SetSecurityHeaders adds the headers every page carries. Pages load nothing
// external and run no script.
func SetSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
}
