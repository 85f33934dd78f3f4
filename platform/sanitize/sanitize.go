// Package sanitize cleans user-provided text before it is stored.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	separatorRegex  = regexp.MustCompile(`[\s\-]+`)
	identifierStrip = regexp.MustCompile(`[^a-z0-9_.]`)
)

var entityReplacer = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&amp;", "&",
	"&quot;", "\"",
	"&#39;", "'",
)

// StripHTML removes HTML tags, including tags hidden behind entities, and
// trims the result.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = entityReplacer.Replace(result)
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Text sanitizes free text such as an activity subtype.
func Text(s string) string {
	return StripHTML(s)
}

// TextPtr is Text for optional fields. Blank results become nil.
func TextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	result := Text(*s)
	if result == "" {
		return nil
	}
	return &result
}

// Identifier folds a label like "Pricing Page" into the snake_case form
// "pricing_page" used for activity types.
func Identifier(s string) string {
	result := strings.ToLower(StripHTML(s))
	result = separatorRegex.ReplaceAllString(result, "_")
	result = identifierStrip.ReplaceAllString(result, "")
	return strings.Trim(result, "_")
}
