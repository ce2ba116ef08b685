package models

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// SanitizeText removes every tag and attribute from user supplied text. The
// result is HTML-escaped and safe to render as-is.
func SanitizeText(s string) string {
	return strings.TrimSpace(strictPolicy.Sanitize(s))
}

// TextLength counts the characters a reader sees in sanitized text.
func TextLength(sanitized string) int {
	return utf8.RuneCountInString(html.UnescapeString(sanitized))
}
