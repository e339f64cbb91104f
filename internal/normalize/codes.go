package normalize

import (
	"regexp"
	"sort"
	"strings"
)

var nonAlphanumeric = regexp.MustCompile(`[^A-Za-z0-9]`)

// DiagnosisCode trims whitespace, uppercases, and strips non-alphanumeric
// characters, so "e11.65 " and "E1165" compare equal. Returns "" when nothing
// is left.
func DiagnosisCode(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return nonAlphanumeric.ReplaceAllString(strings.ToUpper(s), "")
}

// DiagnosisCodes normalises a list of codes, dropping empties and duplicates.
// The result is sorted.
func DiagnosisCodes(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		n := DiagnosisCode(c)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
