// Package shortcode generates random short codes and normalises
// user-supplied ones.
package shortcode

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

// Alphabet is the character set generated codes are drawn from. Custom codes
// are lowercased before validation, so both kinds share one code space.
const Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

const (
	// DefaultLength gives 36^6 (about 2.2 billion) possible codes.
	DefaultLength = 6
	// MaxCustomLength bounds user-supplied codes.
	MaxCustomLength = 20
)

var customCodeRegex = regexp.MustCompile(`^[a-z0-9]+$`)

var (
	ErrEmptyCode      = errors.New("short code is empty")
	ErrCodeTooLong    = fmt.Errorf("short code exceeds %d characters", MaxCustomLength)
	ErrInvalidSymbols = errors.New("short code must contain only letters and digits")
)

// Generator produces candidate short codes. Callers are responsible for
// rejecting candidates that already exist.
type Generator interface {
	Generate() (string, error)
}

// RandomGenerator draws fixed-length codes from Alphabet using crypto/rand.
type RandomGenerator struct {
	length int
}

// NewRandomGenerator returns a generator for codes of the given length.
// Non-positive lengths fall back to DefaultLength.
func NewRandomGenerator(length int) *RandomGenerator {
	if length <= 0 {
		length = DefaultLength
	}
	return &RandomGenerator{length: length}
}

// Length returns the length of generated codes.
func (g *RandomGenerator) Length() int {
	return g.length
}

// Generate returns a new random code.
func (g *RandomGenerator) Generate() (string, error) {
	base := big.NewInt(int64(len(Alphabet)))
	var b strings.Builder
	b.Grow(g.length)
	for i := 0; i < g.length; i++ {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		b.WriteByte(Alphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeCustom trims and lowercases a user-supplied code and checks that
// it is 1..MaxCustomLength alphanumeric characters.
func NormalizeCustom(code string) (string, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	switch {
	case code == "":
		return "", ErrEmptyCode
	case len(code) > MaxCustomLength:
		return "", ErrCodeTooLong
	case !customCodeRegex.MatchString(code):
		return "", ErrInvalidSymbols
	}
	return code, nil
}
