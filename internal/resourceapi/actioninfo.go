package resourceapi

import (
	"encoding/json"
	"fmt"

	"scopegate/internal/action"
)

// envelope is the wrapper every API response uses.
type envelope[T any] struct {
	Response T `json:"Response"`
}

type userJSON struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
	Href string `json:"Href"`
}

type sampleJSON struct {
	ID             string `json:"Id"`
	Href           string `json:"Href"`
	Name           string `json:"Name"`
	GenomeName     string `json:"GenomeName"`
	SampleNumber   int    `json:"SampleNumber"`
	ExperimentName string `json:"ExperimentName"`
	HrefFiles      string `json:"HrefFiles"`
}

type analysisJSON struct {
	ID          string `json:"Id"`
	Href        string `json:"Href"`
	Name        string `json:"Name"`
	Description string `json:"Description"`
	HrefResults string `json:"HrefResults"`
}

type projectJSON struct {
	ID           string `json:"Id"`
	Href         string `json:"Href"`
	Name         string `json:"Name"`
	HrefSamples  string `json:"HrefSamples"`
	HrefAnalyses string `json:"HrefAnalyses"`
}

type actionInfoJSON struct {
	User     *userJSON      `json:"User"`
	Samples  []sampleJSON   `json:"Samples"`
	Analyses []analysisJSON `json:"Analyses"`
	Projects []projectJSON  `json:"Projects"`
}

// ParseActionInfo decodes an action info payload into an action context. The
// caller fills in the action name and URIs.
func ParseActionInfo(data []byte) (*action.Context, error) {
	var env envelope[actionInfoJSON]
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse action info: %w", err)
	}

	info := env.Response
	if info.User == nil || info.User.ID == "" {
		return nil, ErrMissingUserID
	}

	c := &action.Context{
		User: action.User{ID: info.User.ID, Name: info.User.Name, Href: info.User.Href},
	}
	for _, s := range info.Samples {
		c.Samples = append(c.Samples, action.Sample(s))
	}
	for _, a := range info.Analyses {
		c.Analyses = append(c.Analyses, action.Analysis(a))
	}
	for _, p := range info.Projects {
		c.Projects = append(c.Projects, action.Project(p))
	}
	return c, nil
}
