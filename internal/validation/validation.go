package validation

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"
)

// ErrLatitudeRange is returned when latitude is outside [-90, 90] or NaN.
var ErrLatitudeRange = errors.New("latitude out of range")

// ErrLongitudeRange is returned when longitude is outside [-180, 180] or NaN.
var ErrLongitudeRange = errors.New("longitude out of range")

// ErrFieldNameEmpty is returned when the field name is empty after trim.
var ErrFieldNameEmpty = errors.New("field name is required")

// ErrFieldNameTooLong is returned when the field name exceeds the maximum.
var ErrFieldNameTooLong = errors.New("field name too long")

// ErrFieldNameInvalidChars is returned when the field name contains disallowed characters.
var ErrFieldNameInvalidChars = errors.New("field name contains invalid characters")

// ValidateCoordinates checks the field's position in decimal degrees.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return fmt.Errorf("%w: %v", ErrLatitudeRange, lat)
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return fmt.Errorf("%w: %v", ErrLongitudeRange, lon)
	}
	return nil
}

// ValidateFieldName trims the display name shown above the current conditions
// and restricts it to letters, digits, spaces and simple punctuation.
// maxLen counts runes; 0 disables the bound.
func ValidateFieldName(input string, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	if len(r) == 0 {
		return "", ErrFieldNameEmpty
	}
	if maxLen > 0 && len(r) > maxLen {
		return "", ErrFieldNameTooLong
	}
	for _, c := range r {
		if !isAllowedNameRune(c) {
			return "", ErrFieldNameInvalidChars
		}
	}
	return s, nil
}

func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '–', '(', ')', '.', '\'', '&':
		return true
	}
	return false
}
