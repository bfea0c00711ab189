// Package text prepares header and footer labels for the core PDF fonts.
package text

import (
	"strings"

	"golang.org/x/text/encoding/charmap"
)

const ellipsis = "..."

// Encode converts a UTF-8 label to Windows-1252, the encoding of the core
// PDF fonts. Runes outside the code page become '?'.
func Encode(label string) string {
	var b strings.Builder
	for _, r := range normalizeSpace(label) {
		if c, ok := charmap.Windows1252.EncodeRune(r); ok {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('?')
	}
	return b.String()
}

// Fit shortens label with a trailing ellipsis until measure reports it no
// wider than maxWidth. label is single-byte text as returned by Encode, and
// measure is the writer's string width function.
func Fit(label string, maxWidth float64, measure func(string) float64) string {
	if maxWidth <= 0 || measure(label) <= maxWidth {
		return label
	}
	for n := len(label) - 1; n > 0; n-- {
		candidate := strings.TrimRight(label[:n], " ") + ellipsis
		if measure(candidate) <= maxWidth {
			return candidate
		}
	}
	return ""
}

// normalizeSpace collapses runs of whitespace into single spaces
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
