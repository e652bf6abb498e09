package usecase

import (
	"crypto/rand"
	"io"
	"math"
	"strings"

	"captive-portal/internal/domain"
)

const (
	// DefaultCodeAlphabet avoids ambiguous characters like O/0, I/1, l.
	DefaultCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	DefaultCodeLength   = 8
)

// CodeGenerator draws candidate access codes. Uniqueness is enforced by storage, not here.
type CodeGenerator interface {
	Generate() (string, error)
	// SpaceSize is len(alphabet)^length, saturated at math.MaxInt64.
	SpaceSize() int64
}

type randomCodeGenerator struct {
	alphabet string
	length   int
	src      io.Reader
}

func NewCodeGenerator(alphabet string, length int) (*randomCodeGenerator, error) {
	if alphabet == "" {
		alphabet = DefaultCodeAlphabet
	}
	if length <= 0 {
		length = DefaultCodeLength
	}
	// Redemption upper-cases input, so the alphabet must not contain lower-case letters.
	if len(alphabet) < 2 || len(alphabet) > 256 || hasDuplicates(alphabet) || strings.ToUpper(alphabet) != alphabet {
		return nil, domain.ErrInvalidArgument
	}
	return &randomCodeGenerator{alphabet: alphabet, length: length, src: rand.Reader}, nil
}

// Generate samples uniformly from the alphabet; bytes that would bias the modulo are rejected.
func (g *randomCodeGenerator) Generate() (string, error) {
	n := len(g.alphabet)
	limit := 256 - 256%n
	out := make([]byte, 0, g.length)
	buf := make([]byte, g.length)
	for len(out) < g.length {
		if _, err := io.ReadFull(g.src, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, g.alphabet[int(b)%n])
			if len(out) == g.length {
				break
			}
		}
	}
	return string(out), nil
}

func (g *randomCodeGenerator) SpaceSize() int64 {
	return spaceSize(len(g.alphabet), g.length)
}

func spaceSize(base, length int) int64 {
	size := int64(1)
	for i := 0; i < length; i++ {
		if size > math.MaxInt64/int64(base) {
			return math.MaxInt64
		}
		size *= int64(base)
	}
	return size
}

func hasDuplicates(s string) bool {
	seen := make(map[byte]struct{}, len(s))
	for i := 0; i < len(s); i++ {
		if _, ok := seen[s[i]]; ok {
			return true
		}
		seen[s[i]] = struct{}{}
	}
	return false
}
