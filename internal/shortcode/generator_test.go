package shortcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomGenerator_Generate(t *testing.T) {
	tests := []struct {
		name     string
		length   int
		expected int
	}{
		{"default", 0, DefaultLength},
		{"negative falls back", -3, DefaultLength},
		{"custom", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewRandomGenerator(tt.length)
			assert.Equal(t, tt.expected, g.Length())

			code, err := g.Generate()
			require.NoError(t, err)
			assert.Len(t, code, tt.expected)
			for _, r := range code {
				assert.True(t, strings.ContainsRune(Alphabet, r), "unexpected character %q", r)
			}
		})
	}
}

func TestRandomGenerator_Varies(t *testing.T) {
	g := NewRandomGenerator(DefaultLength)
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code, err := g.Generate()
		require.NoError(t, err)
		seen[code] = struct{}{}
	}
	// 200 draws from 36^6 codes colliding more than a couple of times would
	// mean the source is broken.
	assert.Greater(t, len(seen), 195)
}

func TestNormalizeCustom(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		err      error
	}{
		{"promo1", "promo1", nil},
		{"PROMO1", "promo1", nil},
		{"  Summer2026 ", "summer2026", nil},
		{"a", "a", nil},
		{strings.Repeat("x", MaxCustomLength), strings.Repeat("x", MaxCustomLength), nil},
		{"", "", ErrEmptyCode},
		{"   ", "", ErrEmptyCode},
		{strings.Repeat("x", MaxCustomLength+1), "", ErrCodeTooLong},
		{"promo-1", "", ErrInvalidSymbols},
		{"promo_1", "", ErrInvalidSymbols},
		{"pro mo", "", ErrInvalidSymbols},
		{"café", "", ErrInvalidSymbols},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			code, err := NormalizeCustom(tt.input)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, code)
		})
	}
}
