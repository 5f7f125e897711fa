package promo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateCodeFormat(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 10000; i++ {
		code := GenerateCode()

		assert.Len(t, code, CodeLength)
		assert.True(t, ValidCodeFormat(code), "generated code %q should pass its own format check", code)

		hasLetter := false
		for _, c := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, c), "code %q contains %q outside the alphabet", code, c)
			if c >= 'A' && c <= 'Z' {
				hasLetter = true
			}
		}
		assert.True(t, hasLetter, "code %q has no letter", code)
		seen[code] = true
	}

	// 10k draws from ~1.67M codes should not all collapse onto a few values.
	assert.Greater(t, len(seen), 9000)
}

func TestValidCodeFormat(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		valid bool
	}{
		{name: "letters and digits", input: "AB12", valid: true},
		{name: "all letters", input: "WXYZ", valid: true},
		{name: "single letter", input: "1A23", valid: true},
		{name: "all digits", input: "1234", valid: false},
		{name: "too short", input: "AB1", valid: false},
		{name: "too long", input: "AB123", valid: false},
		{name: "lowercase", input: "ab12", valid: false},
		{name: "punctuation", input: "AB-1", valid: false},
		{name: "empty", input: "", valid: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.valid, ValidCodeFormat(tc.input))
		})
	}
}
