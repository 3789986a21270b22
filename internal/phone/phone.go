// Package phone holds the single canonicalization point for counterparty
// phone numbers. Every store write and every store lookup goes through
// Canonical, so rows never exist in mixed +/non-+ forms.
package phone

import "strings"

// Canonical strips all whitespace and guarantees a leading "+".
// An empty input stays empty.
func Canonical(s string) string {
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "+") {
		s = "+" + s
	}
	return s
}
