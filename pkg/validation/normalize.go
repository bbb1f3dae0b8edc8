package validation

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeEmail folds an address to the form used for identity and
// idempotency lookups: NFKC, trimmed, lower-cased.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(email)))
}

// NormalizeText applies NFC and trims surrounding whitespace.
func NormalizeText(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}
