package validators

import "strings"

// SanitizeTerm collapses whitespace in a free-text search term and caps it at maxRunes.
func SanitizeTerm(input string, maxRunes int) string {
	collapsed := strings.Join(strings.Fields(input), " ")
	if maxRunes <= 0 {
		return collapsed
	}
	runes := []rune(collapsed)
	if len(runes) > maxRunes {
		return string(runes[:maxRunes])
	}
	return collapsed
}
