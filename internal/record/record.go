package record

import (
	"errors"
)

var (
	// ErrMalformedRecord reports a line with fewer hex characters than the
	// digest needs, or a non-hex character inside the digest.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrMalformedCount reports a record whose ":count" suffix is not a
	// valid base-10 32-bit integer.
	ErrMalformedCount = errors.New("malformed count")
)

// SHA1 is one entry of the SHA-1 corpus.
type SHA1 struct {
	Digest [20]byte
	Count  int32
}

// NTLM is one entry of the NTLM corpus: same layout as SHA1 with the
// shorter MD4 digest.
type NTLM struct {
	Digest [16]byte
	Count  int32
}

func (r SHA1) String() string { return SHA1Codec{}.Format(r) }

func (r NTLM) String() string { return NTLMCodec{}.Format(r) }
