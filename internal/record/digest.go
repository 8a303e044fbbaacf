package record

import (
	"crypto/sha1"
	"encoding/binary"
	"unicode/utf16"

	"golang.org/x/crypto/md4"
)

// SHA1Sum digests a plaintext password for lookup against the SHA-1
// corpus.
func SHA1Sum(password string) SHA1 {
	return SHA1{Digest: sha1.Sum([]byte(password)), Count: -1}
}

// NTLMSum digests a plaintext password for lookup against the NTLM
// corpus: MD4 over the UTF-16LE encoding of the password.
func NTLMSum(password string) NTLM {
	units := utf16.Encode([]rune(password))
	buf := make([]byte, len(units)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(buf[i*2:], u)
	}
	h := md4.New()
	h.Write(buf)
	var r NTLM
	copy(r.Digest[:], h.Sum(nil))
	r.Count = -1
	return r
}
