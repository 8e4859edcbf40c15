package capability

import (
	"strings"
	"unicode"
)

// NormalizeName converts a display name like "Target Temperature" or
// "target-temperature" to the canonical lowerCamel wire name
// "targetTemperature".
func NormalizeName(name string) string {
	var result strings.Builder
	upperNext := false
	for _, r := range name {
		switch {
		case r == ' ' || r == '-' || r == '_':
			upperNext = true
		// The first written rune is lowercased even after a separator, so
		// "-foo" and " Foo" still come out lowerCamel.
		case result.Len() == 0:
			result.WriteRune(unicode.ToLower(r))
			upperNext = false
		case upperNext:
			result.WriteRune(unicode.ToUpper(r))
			upperNext = false
		default:
			result.WriteRune(r)
		}
	}
	return result.String()
}
