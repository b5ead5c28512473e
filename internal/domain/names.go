package domain

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeCommand trims surrounding whitespace and applies Unicode NFC so
// that visually identical names hash and store identically.
func NormalizeCommand(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}
