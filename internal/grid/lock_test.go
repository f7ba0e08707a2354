package grid

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShuffleIsPermutation(t *testing.T) {
	for i := 0; i < 200; i++ {
		got, err := Shuffle(rand.Reader)
		require.NoError(t, err)
		require.Len(t, got, 10)
		seen := [10]bool{}
		for _, d := range got {
			require.False(t, seen[d], "digit %d repeated in %v", d, got)
			seen[d] = true
		}
	}
}

func TestShuffleIsRoughlyUniform(t *testing.T) {
	const trials = 20000
	var first [10]int
	for i := 0; i < trials; i++ {
		got, err := Shuffle(rand.Reader)
		require.NoError(t, err)
		first[got[0]]++
	}
	// expected 2000 per digit, standard deviation ~42
	for d, n := range first {
		assert.InDelta(t, trials/10, n, 300, "digit %d leads %d times", d, n)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestShufflePropagatesReaderErrors(t *testing.T) {
	_, err := Shuffle(failingReader{})
	assert.Error(t, err)
}

func TestShuffleIsDeterministicForFixedInput(t *testing.T) {
	seed := bytes.Repeat([]byte{0x42}, 256)
	a, err := Shuffle(bytes.NewReader(seed))
	require.NoError(t, err)
	b, err := Shuffle(bytes.NewReader(seed))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRandomCodeUsesAlphabet(t *testing.T) {
	code, err := randomCode(rand.Reader, entryCodeLength)
	require.NoError(t, err)
	require.Len(t, code, entryCodeLength)
	for _, r := range code {
		assert.Contains(t, entryCodeAlphabet, string(r))
	}
}
