package nlp

import (
	"html"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// MinQueryLength is the shortest accepted question, in runes.
const MinQueryLength = 2

var (
	controlRe = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	quoteRe   = regexp.MustCompile("[\\\\'\";`]")
	strict    = bluemonday.StrictPolicy()
)

// SanitizeInput strips control characters, markup and quoting characters
// from user input.
func SanitizeInput(text string) string {
	if text == "" {
		return ""
	}
	text = controlRe.ReplaceAllString(text, "")
	text = html.UnescapeString(strict.Sanitize(text))
	text = quoteRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// StripHTML removes all markup from an HTML fragment and returns its text.
func StripHTML(fragment string) string {
	return html.UnescapeString(strict.Sanitize(fragment))
}

// ValidQuery reports whether q is long enough to be worth answering.
func ValidQuery(q string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(q)) >= MinQueryLength
}

// ValidURL reports whether raw is an absolute http(s) URL with a host.
func ValidURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
