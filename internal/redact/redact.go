// Package redact implements the PII redaction engine: a pure,
// deterministic transformation from text to redacted text. The worker's
// idempotence guarantee depends on this package staying side-effect
// free.
package redact

import (
	"regexp"
	"strings"

	"logscrub/internal/constants"
)

// The alternatives are ordered longest/most-specific first. Go's regexp
// alternation is leftmost-first, so at any position a 10-digit phone
// number wins over the 7-digit pattern that would otherwise match its
// prefix. Under-redaction is worse than over-redaction, hence
// longest-match precedence.
//
// Covered, in precedence order:
//   - email addresses
//   - phone numbers with parenthesized area code: (555) 555-0199
//   - 10-digit phone numbers with optional -, . or space separators
//   - SSNs: 123-45-6789
//   - 7-digit local phone numbers: 555-0199
var pattern = regexp.MustCompile(strings.Join([]string{
	`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`,
	`\(\d{3}\)\s*\d{3}[-.\s]?\d{4}\b`,
	`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`,
	`\b\d{3}-\d{2}-\d{4}\b`,
	`\b\d{3}[-.\s]?\d{4}\b`,
}, "|"))

// Redact replaces every detected sensitive entity in text with the
// fixed placeholder and returns the redacted text together with the
// number of entities found. A single pass over the input; everything
// outside the matches, Unicode included, passes through unchanged.
func Redact(text string) (string, int) {
	matches := pattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text, 0
	}

	var b strings.Builder
	b.Grow(len(text))

	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m[0]])
		b.WriteString(constants.RedactionPlaceholder)
		last = m[1]
	}
	b.WriteString(text[last:])

	return b.String(), len(matches)
}
