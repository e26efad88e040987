// Package email derives a human-readable addressee from a contact address.
// Compliance notices are addressed by name; the ledger only stores an email.
package email

import (
	"strings"
	"unicode"
)

// AddresseeName turns a contact email's local part into a display name:
// "anna.lind@example.com" becomes "Anna Lind". Separators ., _, - and +
// split name parts. An empty address yields an empty name.
func AddresseeName(addr string) string {
	if addr == "" {
		return ""
	}

	local := addr
	if at := strings.IndexByte(addr, '@'); at > 0 {
		local = addr[:at]
	}

	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return ""
	}

	for i, p := range parts {
		parts[i] = title(p)
	}
	return strings.Join(parts, " ")
}

func title(s string) string {
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
