package policy

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
	urlPattern   = regexp.MustCompile(`https?://[^\s?#]+[?#][^\s]*`)
)

// DefaultPreviewRunes bounds free text copied into a log line.
const DefaultPreviewRunes = 80

// RedactPII masks common high-risk PII patterns.
func RedactPII(input string) (redacted string, changed bool) {
	out := input

	next := emailPattern.ReplaceAllString(out, "[REDACTED_EMAIL]")
	changed = changed || next != out
	out = next

	// Card before phone, or long card numbers match the phone pattern.
	next = cardPattern.ReplaceAllString(out, "[REDACTED_CARD]")
	changed = changed || next != out
	out = next

	next = phonePattern.ReplaceAllString(out, "[REDACTED_PHONE]")
	changed = changed || next != out
	out = next

	return out, changed
}

// RedactURL drops the query string and fragment, which often carry tokens.
func RedactURL(raw string) string {
	return urlPattern.ReplaceAllStringFunc(raw, func(m string) string {
		if i := strings.IndexAny(m, "?#"); i >= 0 {
			return m[:i] + "?[REDACTED]"
		}
		return m
	})
}

// LogPreview returns a redacted, single-line, rune-bounded copy of user text
// that is safe to attach to a log event.
func LogPreview(input string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = DefaultPreviewRunes
	}
	out, _ := RedactPII(strings.Join(strings.Fields(input), " "))
	out = RedactURL(out)
	if utf8.RuneCountInString(out) <= maxRunes {
		return out
	}
	runes := []rune(out)
	return string(runes[:maxRunes]) + "…"
}
