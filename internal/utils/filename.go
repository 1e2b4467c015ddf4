package utils

import (
	"path"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// Runs of anything that is not a lower-case letter or digit
	nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)
	// Multiple spaces to collapse
	multipleSpaces = regexp.MustCompile(`\s+`)
	// Extensions commonly found in course folders
	knownExtensions = regexp.MustCompile(`(?i)\.(docx?|pdf|txt|pptx?|xlsx?|mp4|mp3|m4a|wav|avi|mov|mkv|webm|zip|rar|png|jpe?g|gif|svg|html?|css|js|json|xml|csv|odt|ods|odp|epub)$`)
)

// StripDiacritics removes combining marks, so "Módulo Avaliação" becomes "Modulo Avaliacao"
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}

// Slugify lower-cases s, strips diacritics and collapses non-alphanumeric runs to single hyphens.
// An empty result falls back to fallback.
func Slugify(s, fallback string) string {
	slug := strings.ToLower(StripDiacritics(s))
	slug = nonSlugChars.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return fallback
	}
	return slug
}

// CollapseSpaces trims s and collapses whitespace runs to a single space
func CollapseSpaces(s string) string {
	return strings.TrimSpace(multipleSpaces.ReplaceAllString(s, " "))
}

// StripExtension removes a known file extension from a file name
func StripExtension(filename string) string {
	return strings.TrimSpace(knownExtensions.ReplaceAllString(filename, ""))
}

// Extension returns the lower-cased extension of filename without the dot, or "" when there is none
func Extension(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if ext == "" || strings.ContainsAny(ext, " \t") || len(ext) > 5 {
		return ""
	}
	return ext
}
