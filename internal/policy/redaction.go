package policy

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)

	apiKeyPattern   = regexp.MustCompile(`\bsk-[A-Za-z0-9_\-]{8,}`)
	bearerPattern   = regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._~+/\-]+=*`)
	urlUserPattern  = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.\-]*://[^:/@\s]*):[^@/\s]+@`)
	keyParamPattern = regexp.MustCompile(`(?i)((?:api[_-]?key|token|password|secret)=)[^&\s"']+`)
)

// RedactPII masks common high-risk PII patterns.
func RedactPII(input string) (redacted string, changed bool) {
	out := input

	next := emailPattern.ReplaceAllString(out, "[REDACTED_EMAIL]")
	changed = changed || next != out
	out = next

	// Run card redaction before phone to avoid card numbers being classified as phone.
	next = cardPattern.ReplaceAllString(out, "[REDACTED_CARD]")
	changed = changed || next != out
	out = next

	next = phonePattern.ReplaceAllString(out, "[REDACTED_PHONE]")
	changed = changed || next != out
	out = next

	return out, changed
}

// RedactSecrets masks credentials that upstream errors tend to echo back:
// API keys, bearer tokens, connection-string passwords and key query params.
func RedactSecrets(input string) string {
	out := urlUserPattern.ReplaceAllString(input, "$1:[REDACTED]@")
	out = apiKeyPattern.ReplaceAllString(out, "[REDACTED_KEY]")
	out = bearerPattern.ReplaceAllString(out, "Bearer [REDACTED]")
	out = keyParamPattern.ReplaceAllString(out, "$1[REDACTED]")
	return out
}

// LogPreview prepares user text for a log line: PII and secrets are masked,
// newlines are folded and the result is cut to limit runes.
func LogPreview(input string, limit int) string {
	out, _ := RedactPII(input)
	out = strings.Join(strings.Fields(RedactSecrets(out)), " ")
	if limit > 0 {
		if r := []rune(out); len(r) > limit {
			out = string(r[:limit]) + "..."
		}
	}
	return out
}
