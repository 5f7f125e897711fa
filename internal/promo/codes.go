package promo

import "math/rand/v2"

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// CodeLength is the fixed length of every promo code.
	CodeLength = 4
)

// GenerateCode draws CodeLength characters uniformly from A-Z and 0-9,
// redrawing until the result contains at least one letter. All-digit codes
// are rejected so codes stay visually distinct from order numbers; the
// rejection costs ~0.2% of draws. Codes are not secrets, so math/rand is
// enough. Collision handling against already-issued codes is the caller's
// responsibility.
func GenerateCode() string {
	for {
		buf := make([]byte, CodeLength)
		hasLetter := false
		for i := range buf {
			c := codeAlphabet[rand.IntN(len(codeAlphabet))]
			buf[i] = c
			if c >= 'A' && c <= 'Z' {
				hasLetter = true
			}
		}
		if hasLetter {
			return string(buf)
		}
	}
}

// ValidCodeFormat reports whether s could be a promo code: exactly CodeLength
// characters from A-Z0-9 with at least one letter.
func ValidCodeFormat(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	hasLetter := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
			hasLetter = true
		case c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return hasLetter
}
