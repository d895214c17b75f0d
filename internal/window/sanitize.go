package window

import (
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes text (NFD) and drops combining diacritical marks, so
// "café" and "cafe" render as the same label.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))

// SanitizeLabel accent-folds display text. Idempotent.
func SanitizeLabel(text string) string {
	out, _, err := transform.String(stripMarks, text)
	if err != nil {
		return text
	}
	return out
}
