package auth

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretGenerator_Generate(t *testing.T) {
	g := NewSecretGenerator(20 * time.Minute)
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return fixed }

	s, err := g.Generate()
	require.NoError(t, err)

	assert.Len(t, s.Plain, 2*secretBytes)
	assert.Len(t, s.Hash, 64)
	assert.NotEqual(t, s.Plain, s.Hash)
	assert.Equal(t, fixed.Add(20*time.Minute), s.ExpiresAt)
	assert.Equal(t, 20*time.Minute, g.TTL())
}

func TestSecretGenerator_Unique(t *testing.T) {
	g := NewSecretGenerator(time.Minute)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		s, err := g.Generate()
		require.NoError(t, err)
		assert.False(t, seen[s.Plain])
		seen[s.Plain] = true
	}
}

func TestSecretGenerator_DeterministicReader(t *testing.T) {
	g := NewSecretGenerator(time.Minute)
	g.random = bytes.NewReader(bytes.Repeat([]byte{0xab}, secretBytes))

	s, err := g.Generate()
	require.NoError(t, err)
	assert.Equal(t, "abababababababababababababababababababab", s.Plain)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestSecretGenerator_RandomFailure(t *testing.T) {
	g := NewSecretGenerator(time.Minute)
	g.random = failingReader{}

	_, err := g.Generate()
	assert.Error(t, err)
}

func TestMatchSecret(t *testing.T) {
	s, err := NewSecretGenerator(time.Minute).Generate()
	require.NoError(t, err)

	assert.True(t, MatchSecret(s.Plain, s.Hash))
	assert.False(t, MatchSecret(s.Plain+"0", s.Hash))
	assert.False(t, MatchSecret(s.Hash, s.Hash), "the digest itself is not a valid secret")
	assert.False(t, MatchSecret("", s.Hash))
	assert.False(t, MatchSecret(s.Plain, ""))
}

func TestHashSecret_Stable(t *testing.T) {
	assert.Equal(t, HashSecret("abc"), HashSecret("abc"))
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", HashSecret("abc"))
}
