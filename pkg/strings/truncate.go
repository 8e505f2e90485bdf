package strings

import (
	"strings"
)

// DefaultDiagnosticMaxLen bounds upstream response bodies quoted in error pages and logs.
const DefaultDiagnosticMaxLen = 512

// MinTruncateLen is the minimum maxLen value for Truncate.
// Values smaller than this would not leave room for meaningful content plus "...".
const MinTruncateLen = 4

// Truncate collapses all whitespace runs into single spaces and cuts the result to
// maxLen runes, appending "..." when it had to cut. It operates on runes so multi-byte
// characters are never split.
func Truncate(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}

// Diagnostic is Truncate with DefaultDiagnosticMaxLen, for raw upstream bodies.
func Diagnostic(body []byte) string {
	return Truncate(string(body), DefaultDiagnosticMaxLen)
}
