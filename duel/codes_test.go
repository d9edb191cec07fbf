package duel

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoomCode(t *testing.T) {
	rng := NewLocalRand()
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code := NewRoomCode(rng)
		require.Len(t, code, codeLength)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, r),
				"code %q contains %q outside the alphabet", code, r)
		}
		seen[code] = true
	}
	// Not a uniqueness guarantee, just a sanity check that the generator
	// is not stuck on one value.
	assert.Greater(t, len(seen), 190)
}

func TestCodeAlphabetAvoidsLookalikes(t *testing.T) {
	for _, r := range "01OIL" {
		assert.False(t, strings.ContainsRune(codeAlphabet, r),
			"%q is too easy to misread over voice or handwriting", r)
	}
}
