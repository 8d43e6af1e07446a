package utils

import (
	"strings"
	"unicode/utf8"
)

// FirstNonEmpty returns the first value that is not empty after trimming,
// or fallback when none is. Used for the language fallback chains
// (session language → last client message language → default).
func FirstNonEmpty(fallback string, values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return fallback
}

// Clamp truncates s to at most n bytes without splitting a UTF-8 sequence,
// appending an ellipsis when anything was cut.
func Clamp(s string, n int) string {
	if s == "" || len(s) <= n {
		return s
	}
	cut := s[:n]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return strings.TrimSpace(cut) + "…"
}

// NormalizeLanguage lowercases a language tag and keeps only the primary
// subtag ("tr-TR" → "tr").
func NormalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return lang
}
