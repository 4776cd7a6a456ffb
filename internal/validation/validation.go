// Package validation checks user-supplied lookup keys before they reach a cache or upstream.
package validation

import (
	"errors"
	"strings"
	"unicode"
)

var (
	// ErrCityEmpty is returned when the city is empty or whitespace-only after trim.
	ErrCityEmpty = errors.New("city is required")
	// ErrCityTooLong is returned when the city exceeds the maximum rune count.
	ErrCityTooLong = errors.New("city too long")
	// ErrCityInvalidChars is returned when the city contains disallowed characters.
	ErrCityInvalidChars = errors.New("city contains invalid characters")
)

// ValidateCity trims the input, enforces maxLen (in runes, 0 = unbounded), and
// restricts to letters, digits, space, comma, hyphen, period and apostrophe
// ("St. John's", "Winston-Salem"). Case is preserved: the city is a cache key as typed.
func ValidateCity(input string, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	if len(r) == 0 {
		return "", ErrCityEmpty
	}
	if maxLen > 0 && len(r) > maxLen {
		return "", ErrCityTooLong
	}
	for _, c := range r {
		if !isAllowedCityRune(c) {
			return "", ErrCityInvalidChars
		}
	}
	return s, nil
}

func isAllowedCityRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '.', '\'':
		return true
	}
	return false
}
