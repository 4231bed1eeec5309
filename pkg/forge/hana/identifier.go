// Package hana provisions SAP HANA schemas from LLM-authored table
// definitions. Input is untrusted: every identifier is sanitized, every
// statement is planned before execution, and a provisioning call commits
// as one transaction.
package hana

import (
	"strings"
	"unicode"
)

// DefaultSchemaFallback names a schema when the proposal carries none.
const DefaultSchemaFallback = "FORGE_SCHEMA"

// SanitizeIdentifier derives a physical HANA identifier from free-form
// text: uppercase, anything outside [A-Za-z0-9_] becomes an underscore,
// and a digit-leading or empty result gets a letter prefix. The function
// is idempotent, sanitizing its own output returns it unchanged.
func SanitizeIdentifier(value, fallback string) string {
	if value == "" {
		value = fallback
	}

	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(unicode.ToUpper(r))
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	clean := b.String()
	if clean == "" {
		clean = fallback
	}
	if clean != "" && clean[0] >= '0' && clean[0] <= '9' {
		clean = "J_" + clean
	}
	return clean
}

// QuoteIdentifier wraps an identifier in double quotes, doubling any
// embedded quotes.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
