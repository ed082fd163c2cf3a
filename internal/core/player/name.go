package player

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const (
	MinNameLength = 3
	MaxNameLength = 32
)

// NormalizeName returns the display form (NFC, trimmed) and the directory
// key (case-folded) of a username.
func NormalizeName(raw string) (display, key string, err error) {
	display = norm.NFC.String(strings.TrimSpace(raw))
	n := utf8.RuneCountInString(display)
	if n < MinNameLength || n > MaxNameLength {
		return "", "", fmt.Errorf("%w: length %d not in [%d,%d]", ErrInvalidName, n, MinNameLength, MaxNameLength)
	}
	for _, r := range display {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' {
			continue
		}
		return "", "", fmt.Errorf("%w: character %q not allowed", ErrInvalidName, r)
	}
	// Caser is stateful; one per call.
	key = cases.Fold().String(display)
	return display, key, nil
}
