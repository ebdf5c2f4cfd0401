package llm

import (
	"strings"

	"github.com/doctorfill-dev/doctorfill/internal/resolve"
)

// Markers models emit when they cannot answer, normalized upper-case.
var noAnswerMarkers = map[string]bool{
	"UNKNOWN": true,
	"N/A":     true,
	"NONE":    true,
	"INCONNU": true,
	"":        true,
}

// CleanResponse normalizes raw model output into a bare value: code
// fences and surrounding quotes are stripped, no-answer markers map to
// ErrNoAnswer.
func CleanResponse(raw string) (string, error) {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		// Drop an optional language tag on the fence line.
		if nl := strings.IndexByte(s, '\n'); nl != -1 && !strings.ContainsAny(s[:nl], " \t") {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}

	if noAnswerMarkers[strings.ToUpper(s)] {
		return "", resolve.ErrNoAnswer
	}
	return s, nil
}

// SplitList breaks a comma- or newline-separated model reply into
// trimmed entries, dropping empties.
func SplitList(s string) []string {
	var items []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '\n' || r == ';'
	}) {
		p := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(part), "-"))
		if p != "" {
			items = append(items, p)
		}
	}
	return items
}
