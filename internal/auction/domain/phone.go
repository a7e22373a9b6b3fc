package domain

import "strings"

const (
	minPhoneDigits = 7
	maxPhoneDigits = 15
	maskKeep       = 3
)

// DigitsOnly strips every non-digit character from raw.
func DigitsOnly(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MaskPhone redacts a phone number for public display: the first and last
// three digits are kept and everything between them becomes '*'. Numbers of
// six digits or fewer are returned as bare digits.
func MaskPhone(raw string) string {
	digits := DigitsOnly(raw)
	if len(digits) <= 2*maskKeep {
		return digits
	}
	return digits[:maskKeep] + strings.Repeat("*", len(digits)-2*maskKeep) + digits[len(digits)-maskKeep:]
}

func validPhone(raw string) bool {
	n := len(DigitsOnly(raw))
	return n >= minPhoneDigits && n <= maxPhoneDigits
}
