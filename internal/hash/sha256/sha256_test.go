package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashDeterministic(t *testing.T) {
	t.Parallel()

	h := New()
	got, err := h.Hash("Mortgage rates rise", "https://reuters.com/a")
	require.NoError(t, err)
	again, err := h.Hash("Mortgage rates rise", "https://reuters.com/a")
	require.NoError(t, err)

	assert.Equal(t, got, again)
	assert.Len(t, got, 64)
}

func TestHashMatchesLengthPrefixedEncoding(t *testing.T) {
	t.Parallel()

	got, err := New().Hash("ab", "c")
	require.NoError(t, err)

	sum := sha256.Sum256([]byte("\x02ab\x01c"))
	assert.Equal(t, hex.EncodeToString(sum[:]), got)
}

func TestHashFieldBoundaries(t *testing.T) {
	t.Parallel()

	h := New()
	cases := [][2][]string{
		{{"ab", "c"}, {"a", "bc"}},
		{{"a\nb", "c"}, {"a", "b\nc"}},
		{{"", "x"}, {"x", ""}},
		{{"x"}, {"x", ""}},
	}
	for _, tc := range cases {
		a, err := h.Hash(tc[0]...)
		require.NoError(t, err)
		b, err := h.Hash(tc[1]...)
		require.NoError(t, err)
		assert.NotEqual(t, a, b, "%q vs %q", tc[0], tc[1])
	}
}

func TestHashDistinguishesURLs(t *testing.T) {
	t.Parallel()

	h := New()
	a, _ := h.Hash("Mortgage rates rise", "https://reuters.com/a")
	b, _ := h.Hash("Mortgage rates rise", "https://reuters.com/b")
	assert.NotEqual(t, a, b)
}
