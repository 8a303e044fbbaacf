package record

import (
	"encoding/hex"
	"fmt"
)

// PrefixBits is the width of the range prefix that partitions each
// corpus: five hex characters, the granularity of the upstream range
// API.
const PrefixBits = 20

// PrefixCount is the number of range prefixes in the address space; it
// is also the exclusive upper bound of the prefix counter.
const PrefixCount = 1 << PrefixBits

// PrefixLen is the number of hex characters in a rendered prefix.
const PrefixLen = PrefixBits / 4

// PrefixHex renders a range prefix in its fixed-width uppercase form.
func PrefixHex(p uint32) string {
	return fmt.Sprintf("%05X", p)
}

// ParsePrefix parses a fixed-width hex range prefix, accepting either
// case.
func ParsePrefix(s string) (uint32, error) {
	if len(s) != PrefixLen {
		return 0, fmt.Errorf("range prefix must be %d hex characters, got %q", PrefixLen, s)
	}
	var p uint32
	for i := 0; i < len(s); i++ {
		n, ok := hexNibble(s[i])
		if !ok {
			return 0, fmt.Errorf("range prefix %q is not hexadecimal", s)
		}
		p = p<<4 | uint32(n)
	}
	return p, nil
}

// PrefixFloor writes into dst the smallest digest carrying prefix p:
// the prefix bits followed by zeros. dst must be a full digest buffer.
func PrefixFloor(dst []byte, p uint32) {
	for i := range dst {
		dst[i] = 0
	}
	dst[0] = byte(p >> 12)
	dst[1] = byte(p >> 4)
	dst[2] = byte(p&0x0F) << 4
}

// DigestPrefix extracts the range prefix of a digest.
func DigestPrefix(digest []byte) uint32 {
	return uint32(digest[0])<<12 | uint32(digest[1])<<4 | uint32(digest[2])>>4
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// ParseHexDigest decodes a full-width hex digest, accepting either
// case. Used to build search needles from user-supplied hashes.
func ParseHexDigest(dst []byte, s string) error {
	if len(s) != len(dst)*2 {
		return fmt.Errorf("digest must be %d hex characters, got %d", len(dst)*2, len(s))
	}
	if _, err := hex.Decode(dst, []byte(s)); err != nil {
		return ErrMalformedRecord
	}
	return nil
}
