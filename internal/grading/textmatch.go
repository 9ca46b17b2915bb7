package grading

import (
	"strings"
	"unicode"
)

// normalize trims surrounding whitespace and case-folds. Inner spacing and
// punctuation are significant.
func normalize(s string) string {
	return strings.Map(unicode.ToLower, strings.TrimSpace(s))
}
