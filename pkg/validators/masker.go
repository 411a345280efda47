package validators

import "strings"

// MaskString hides all but the last four characters of value.
// Values shorter than eight characters are masked completely.
func MaskString(value string) string {
	if len(value) < 8 {
		return strings.Repeat("*", 12)
	}
	return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
}
