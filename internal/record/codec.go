package record

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"math"
	"strconv"
)

// Codec converts records of one corpus type between their text, binary
// and in-memory forms and defines the digest-only total order used by
// the sorted database. Implementations are zero-size values.
type Codec[R any] interface {
	// Size is the fixed encoded record size in bytes.
	Size() int
	// DigestSize is the digest width in bytes.
	DigestSize() int
	// Encode writes the binary form of r into dst[:Size()].
	Encode(dst []byte, r R)
	// Decode reads the binary form from src[:Size()].
	Decode(src []byte) R
	// Parse converts a "HEX…[:count]" text line. A missing count is -1.
	// Returns ErrMalformedRecord or ErrMalformedCount on bad input; on
	// ErrMalformedCount the returned record still carries a valid digest
	// and count -1, so lenient callers may keep it.
	Parse(line []byte) (R, error)
	// AppendText appends the canonical text form to dst and returns the
	// extended slice.
	AppendText(dst []byte, r R) []byte
	// Format renders the canonical text form: uppercase hex, ':', count.
	Format(r R) string
	// Compare orders a against b by digest alone.
	Compare(a, b R) int
}

// SHA1Codec implements Codec for the SHA-1 corpus.
type SHA1Codec struct{}

func (SHA1Codec) Size() int       { return 24 }
func (SHA1Codec) DigestSize() int { return 20 }

func (SHA1Codec) Encode(dst []byte, r SHA1) {
	copy(dst[:20], r.Digest[:])
	binary.LittleEndian.PutUint32(dst[20:24], uint32(r.Count))
}

func (SHA1Codec) Decode(src []byte) SHA1 {
	var r SHA1
	copy(r.Digest[:], src[:20])
	r.Count = int32(binary.LittleEndian.Uint32(src[20:24]))
	return r
}

func (SHA1Codec) Parse(line []byte) (SHA1, error) {
	var r SHA1
	n, err := parseDigest(r.Digest[:], line)
	if err != nil {
		return SHA1{}, err
	}
	r.Count, err = parseCount(line[n:])
	return r, err
}

func (SHA1Codec) AppendText(dst []byte, r SHA1) []byte {
	return appendText(dst, r.Digest[:], r.Count)
}

func (c SHA1Codec) Format(r SHA1) string { return string(c.AppendText(nil, r)) }

func (SHA1Codec) Compare(a, b SHA1) int { return bytes.Compare(a.Digest[:], b.Digest[:]) }

// NTLMCodec implements Codec for the NTLM corpus.
type NTLMCodec struct{}

func (NTLMCodec) Size() int       { return 20 }
func (NTLMCodec) DigestSize() int { return 16 }

func (NTLMCodec) Encode(dst []byte, r NTLM) {
	copy(dst[:16], r.Digest[:])
	binary.LittleEndian.PutUint32(dst[16:20], uint32(r.Count))
}

func (NTLMCodec) Decode(src []byte) NTLM {
	var r NTLM
	copy(r.Digest[:], src[:16])
	r.Count = int32(binary.LittleEndian.Uint32(src[16:20]))
	return r
}

func (NTLMCodec) Parse(line []byte) (NTLM, error) {
	var r NTLM
	n, err := parseDigest(r.Digest[:], line)
	if err != nil {
		return NTLM{}, err
	}
	r.Count, err = parseCount(line[n:])
	return r, err
}

func (NTLMCodec) AppendText(dst []byte, r NTLM) []byte {
	return appendText(dst, r.Digest[:], r.Count)
}

func (c NTLMCodec) Format(r NTLM) string { return string(c.AppendText(nil, r)) }

func (NTLMCodec) Compare(a, b NTLM) int { return bytes.Compare(a.Digest[:], b.Digest[:]) }

// parseDigest fills dst from the leading hex characters of line and
// returns the number of input bytes consumed.
func parseDigest(dst, line []byte) (int, error) {
	n := len(dst) * 2
	if len(line) < n {
		return 0, ErrMalformedRecord
	}
	if _, err := hex.Decode(dst, line[:n]); err != nil {
		return 0, ErrMalformedRecord
	}
	return n, nil
}

// parseCount parses the optional ":<int32>" suffix following the digest.
// An absent suffix is the unknown count, -1. Hand-rolled because this
// sits on the per-line hot path of a full-corpus import.
func parseCount(rest []byte) (int32, error) {
	if len(rest) == 0 {
		return -1, nil
	}
	if rest[0] != ':' || len(rest) == 1 {
		return -1, ErrMalformedCount
	}
	digits := rest[1:]
	neg := false
	if digits[0] == '-' || digits[0] == '+' {
		neg = digits[0] == '-'
		digits = digits[1:]
		if len(digits) == 0 {
			return -1, ErrMalformedCount
		}
	}
	var n int64
	for _, c := range digits {
		if c < '0' || c > '9' {
			return -1, ErrMalformedCount
		}
		n = n*10 + int64(c-'0')
		if n > math.MaxInt32+1 {
			return -1, ErrMalformedCount
		}
	}
	if neg {
		n = -n
	}
	if n > math.MaxInt32 || n < math.MinInt32 {
		return -1, ErrMalformedCount
	}
	return int32(n), nil
}

const hexDigits = "0123456789ABCDEF"

func appendText(dst, digest []byte, count int32) []byte {
	dst = AppendHex(dst, digest)
	dst = append(dst, ':')
	return strconv.AppendInt(dst, int64(count), 10)
}

// AppendHex appends the uppercase hex rendering of b to dst.
func AppendHex(dst, b []byte) []byte {
	for _, c := range b {
		dst = append(dst, hexDigits[c>>4], hexDigits[c&0x0F])
	}
	return dst
}
