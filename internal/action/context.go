// Package action holds the domain values that flow through an authorization round-trip:
// the context of the action a user launched, and the deferred operations that wait for
// a broader scope.
package action

// User is the end user an action was launched for.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Href string `json:"href,omitempty"`
}

// Sample is a sequenced sample referenced by an action.
type Sample struct {
	ID             string `json:"id"`
	Href           string `json:"href,omitempty"`
	Name           string `json:"name,omitempty"`
	GenomeName     string `json:"genomeName,omitempty"`
	SampleNumber   int    `json:"sampleNumber,omitempty"`
	ExperimentName string `json:"experimentName,omitempty"`
	HrefFiles      string `json:"hrefFiles,omitempty"`
}

// Analysis is an existing analysis (app result) referenced by an action.
type Analysis struct {
	ID          string `json:"id"`
	Href        string `json:"href,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	HrefResults string `json:"hrefResults,omitempty"`
}

// Project is a project referenced by an action.
type Project struct {
	ID           string `json:"id"`
	Href         string `json:"href,omitempty"`
	Name         string `json:"name,omitempty"`
	HrefSamples  string `json:"hrefSamples,omitempty"`
	HrefAnalyses string `json:"hrefAnalyses,omitempty"`
}

// Context describes what the user originally asked to do. It is immutable once parsed,
// except for Key, which records the registry key it was last stored under.
type Context struct {
	Key string `json:"key,omitempty"`

	Action    string `json:"action,omitempty"`
	ActionURI string `json:"actionUri"`
	ReturnURI string `json:"returnUri,omitempty"`

	User     User       `json:"user"`
	Samples  []Sample   `json:"samples,omitempty"`
	Analyses []Analysis `json:"analyses,omitempty"`
	Projects []Project  `json:"projects,omitempty"`

	// Scope is the authorization scope this action needs to be served.
	Scope string `json:"scope,omitempty"`
}

// UserID returns the id of the user the action belongs to.
func (c *Context) UserID() string {
	return c.User.ID
}

// Project looks up a referenced project by id.
func (c *Context) Project(id string) (Project, bool) {
	for _, p := range c.Projects {
		if p.ID == id {
			return p, true
		}
	}
	return Project{}, false
}

// WithKey returns a copy of the context tagged with the given registry key.
// The slices are shared; nothing mutates them after parsing.
func (c *Context) WithKey(key string) *Context {
	cp := *c
	cp.Key = key
	return &cp
}
