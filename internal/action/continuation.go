package action

import (
	"errors"
	"fmt"
	"time"
)

// Kind enumerates the deferred operations that can wait on an authorization round-trip.
type Kind string

const (
	// KindCreateAnalysis creates an analysis, uploads a report file into it and marks it complete.
	KindCreateAnalysis Kind = "create_analysis"
	// KindSetAnalysisStatus changes the status of an existing analysis.
	KindSetAnalysisStatus Kind = "set_analysis_status"
)

// Analysis statuses accepted by the resource API.
const (
	StatusRunning        = "Running"
	StatusComplete       = "Complete"
	StatusNeedsAttention = "NeedsAttention"
	StatusTimedOut       = "TimedOut"
	StatusAborted        = "Aborted"
)

var validStatuses = map[string]bool{
	StatusRunning:        true,
	StatusComplete:       true,
	StatusNeedsAttention: true,
	StatusTimedOut:       true,
	StatusAborted:        true,
}

// ValidStatus reports whether s is a status the resource API accepts.
func ValidStatus(s string) bool {
	return validStatuses[s]
}

// CreateAnalysis is the payload of KindCreateAnalysis.
type CreateAnalysis struct {
	ProjectID   string `json:"projectId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// SetAnalysisStatus is the payload of KindSetAnalysisStatus.
type SetAnalysisStatus struct {
	ProjectID  string `json:"projectId"`
	AnalysisID string `json:"analysisId"`
	Status     string `json:"status"`
	Summary    string `json:"summary,omitempty"`
}

// Continuation is "the rest of the work" that needed a broader scope. Exactly one
// payload field is set, matching Kind. It is plain data so it can be logged,
// persisted and inspected before it runs.
type Continuation struct {
	Kind       Kind      `json:"kind"`
	ContextKey string    `json:"contextKey,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`

	// Scope is what the authorization round-trip asked for. It is recorded on the
	// token when the provider does not report the granted scope.
	Scope string `json:"scope,omitempty"`

	CreateAnalysis    *CreateAnalysis    `json:"createAnalysis,omitempty"`
	SetAnalysisStatus *SetAnalysisStatus `json:"setAnalysisStatus,omitempty"`
}

// ErrInvalidContinuation is returned by Validate.
var ErrInvalidContinuation = errors.New("invalid continuation")

// NewCreateAnalysis builds a KindCreateAnalysis continuation bound to a context key.
func NewCreateAnalysis(contextKey string, op CreateAnalysis) Continuation {
	return Continuation{
		Kind:           KindCreateAnalysis,
		ContextKey:     contextKey,
		CreatedAt:      time.Now().UTC(),
		CreateAnalysis: &op,
	}
}

// NewSetAnalysisStatus builds a KindSetAnalysisStatus continuation bound to a context key.
func NewSetAnalysisStatus(contextKey string, op SetAnalysisStatus) Continuation {
	return Continuation{
		Kind:              KindSetAnalysisStatus,
		ContextKey:        contextKey,
		CreatedAt:         time.Now().UTC(),
		SetAnalysisStatus: &op,
	}
}

// Validate checks that the payload matches the kind and carries the required ids.
func (c Continuation) Validate() error {
	switch c.Kind {
	case KindCreateAnalysis:
		if c.CreateAnalysis == nil || c.SetAnalysisStatus != nil {
			return fmt.Errorf("%w: %s needs exactly its own payload", ErrInvalidContinuation, c.Kind)
		}
		if c.CreateAnalysis.ProjectID == "" {
			return fmt.Errorf("%w: project id is required", ErrInvalidContinuation)
		}
		if c.CreateAnalysis.Name == "" {
			return fmt.Errorf("%w: analysis name is required", ErrInvalidContinuation)
		}
	case KindSetAnalysisStatus:
		if c.SetAnalysisStatus == nil || c.CreateAnalysis != nil {
			return fmt.Errorf("%w: %s needs exactly its own payload", ErrInvalidContinuation, c.Kind)
		}
		op := c.SetAnalysisStatus
		if op.ProjectID == "" || op.AnalysisID == "" {
			return fmt.Errorf("%w: project and analysis ids are required", ErrInvalidContinuation)
		}
		if !ValidStatus(op.Status) {
			return fmt.Errorf("%w: unknown status %q", ErrInvalidContinuation, op.Status)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidContinuation, c.Kind)
	}
	return nil
}

// RequiredScope is the scope the continuation needs to run.
func (c Continuation) RequiredScope() string {
	switch c.Kind {
	case KindCreateAnalysis:
		if c.CreateAnalysis != nil {
			return WriteProject(c.CreateAnalysis.ProjectID)
		}
	case KindSetAnalysisStatus:
		if c.SetAnalysisStatus != nil {
			return WriteProject(c.SetAnalysisStatus.ProjectID)
		}
	}
	return ""
}

// String describes the continuation for logs.
func (c Continuation) String() string {
	switch {
	case c.Kind == KindCreateAnalysis && c.CreateAnalysis != nil:
		return fmt.Sprintf("%s(project=%s name=%q)", c.Kind, c.CreateAnalysis.ProjectID, c.CreateAnalysis.Name)
	case c.Kind == KindSetAnalysisStatus && c.SetAnalysisStatus != nil:
		op := c.SetAnalysisStatus
		return fmt.Sprintf("%s(project=%s analysis=%s status=%s)", c.Kind, op.ProjectID, op.AnalysisID, op.Status)
	default:
		return string(c.Kind)
	}
}
