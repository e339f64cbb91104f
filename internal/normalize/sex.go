package normalize

import "strings"

// Sex maps the spellings seen in enrollment extracts to "M" or "F".
// ok is false for nil, empty, or anything unrecognised.
func Sex(v *string) (sex string, ok bool) {
	if v == nil {
		return "", false
	}
	switch strings.ToUpper(strings.TrimSpace(*v)) {
	case "M", "MALE":
		return "M", true
	case "F", "FEMALE":
		return "F", true
	}
	return "", false
}
