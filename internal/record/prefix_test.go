package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixHexParseRoundTrip(t *testing.T) {
	for _, p := range []uint32{0, 1, 0xABCDE, 0xFFFFF} {
		s := PrefixHex(p)
		require.Len(t, s, PrefixLen)
		got, err := ParsePrefix(s)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	assert.Equal(t, "00000", PrefixHex(0))
	assert.Equal(t, "00A3F", PrefixHex(0xA3F))
}

func TestParsePrefixErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "too short", in: "ABCD"},
		{name: "too long", in: "ABCDEF"},
		{name: "non-hex", in: "ABCDG"},
		{name: "empty", in: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePrefix(tt.in)
			assert.Error(t, err)
		})
	}
}

func TestParsePrefixAcceptsLowercase(t *testing.T) {
	p, err := ParsePrefix("abcde")
	require.NoError(t, err)
	assert.Equal(t, uint32(0xABCDE), p)
}

func TestPrefixFloorDigestPrefix(t *testing.T) {
	digest := make([]byte, 20)
	for _, p := range []uint32{0, 0x12345, 0xFFFFF} {
		PrefixFloor(digest, p)
		assert.Equal(t, p, DigestPrefix(digest))
		// Everything past the prefix bits is zero.
		assert.Zero(t, digest[2]&0x0F)
		for _, b := range digest[3:] {
			assert.Zero(t, b)
		}
	}
}

func TestDigestPrefixMatchesTextPrefix(t *testing.T) {
	c := SHA1Codec{}
	r, err := c.Parse([]byte("ABCDE10000000000000000000000000000000000:1"))
	require.NoError(t, err)
	assert.Equal(t, uint32(0xABCDE), DigestPrefix(r.Digest[:]))
	assert.Equal(t, "ABCDE", c.Format(r)[:PrefixLen])
}

func TestParseHexDigest(t *testing.T) {
	dst := make([]byte, 20)
	require.NoError(t, ParseHexDigest(dst, "5baa61e4c9b93f3f0682250b6cf8331b7ee68fd8"))
	assert.Equal(t, byte(0x5B), dst[0])

	assert.Error(t, ParseHexDigest(dst, "5baa"))
	assert.Error(t, ParseHexDigest(make([]byte, 16), "5baa61e4c9b93f3f0682250b6cf8331b7ee68fd8"))
}
