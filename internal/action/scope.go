package action

import "strings"

// ScopeSeparator joins individual scopes. Scope names contain spaces
// ("read project 42"), so the list separator is a comma.
const ScopeSeparator = ", "

// DefaultScope is requested for every action when nothing else is configured.
const DefaultScope = "browse global"

func ReadProject(id string) string  { return "read project " + id }
func WriteProject(id string) string { return "write project " + id }
func ReadSample(id string) string   { return "read sample " + id }

// SplitScopes breaks a scope list into trimmed, non-empty entries.
func SplitScopes(scope string) []string {
	parts := strings.Split(scope, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// MergeScopes returns the union of the given scope lists, keeping first-seen order.
func MergeScopes(scopes ...string) string {
	seen := make(map[string]struct{})
	var merged []string
	for _, list := range scopes {
		for _, s := range SplitScopes(list) {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			merged = append(merged, s)
		}
	}
	return strings.Join(merged, ScopeSeparator)
}

// DeriveScope computes the scope an action context needs: the base scope plus read
// access to every referenced project and sample.
func DeriveScope(base string, c *Context) string {
	lists := []string{base}
	for _, p := range c.Projects {
		lists = append(lists, ReadProject(p.ID))
	}
	for _, s := range c.Samples {
		lists = append(lists, ReadSample(s.ID))
	}
	return MergeScopes(lists...)
}
