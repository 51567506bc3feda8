package util

import (
	"strings"
	"unicode"
)

// invalidFilenameChars are rejected by at least one of the supported filesystems
const invalidFilenameChars = `/\:*?"<>|`

// SanitizeForFilename turns a free-text label into something safe to use as
// part of a file name. Spaces become underscores and reserved characters are
// dropped. An empty result falls back to "cover".
func SanitizeForFilename(label string) string {
	var b strings.Builder
	lastUnderscore := false

	for _, r := range strings.TrimSpace(label) {
		switch {
		case strings.ContainsRune(invalidFilenameChars, r), unicode.IsControl(r):
			continue
		case unicode.IsSpace(r):
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
			continue
		}
		b.WriteRune(r)
		lastUnderscore = r == '_'
	}

	name := strings.Trim(b.String(), "._")
	if name == "" {
		return "cover"
	}
	return name
}
