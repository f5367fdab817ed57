package validators

import "strings"

// SanitizeString trims whitespace and keeps at most maxLen runes, so a cut
// never splits a multi-byte character. maxLen <= 0 disables the limit.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen <= 0 {
		return trimmed
	}
	runes := 0
	for i := range trimmed {
		if runes == maxLen {
			return trimmed[:i]
		}
		runes++
	}
	return trimmed
}
