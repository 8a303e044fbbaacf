package server

import (
	"errors"
	"strconv"

	"github.com/GriffinCanCode/hibp/internal/flatfile"
	"github.com/GriffinCanCode/hibp/internal/record"
)

// ErrNoDatabases reports a server started without any corpus to answer
// from.
var ErrNoDatabases = errors.New("at least one of the sha1 and ntlm databases is required")

// Stores holds the memory-mapped corpus databases. A nil corpus field
// means that corpus was not configured; handlers answer 404 for it.
type Stores struct {
	SHA1 *flatfile.DB[record.SHA1]
	NTLM *flatfile.DB[record.NTLM]
}

// OpenStores maps the configured databases, verifying each one opens
// cleanly before the server starts answering.
func OpenStores(sha1Path, ntlmPath string) (*Stores, error) {
	if sha1Path == "" && ntlmPath == "" {
		return nil, ErrNoDatabases
	}
	s := &Stores{}
	if sha1Path != "" {
		db, err := flatfile.Open[record.SHA1](record.SHA1Codec{}, sha1Path)
		if err != nil {
			return nil, err
		}
		s.SHA1 = db
	}
	if ntlmPath != "" {
		db, err := flatfile.Open[record.NTLM](record.NTLMCodec{}, ntlmPath)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.NTLM = db
	}
	return s, nil
}

// Close unmaps all databases.
func (s *Stores) Close() error {
	var err error
	if s.SHA1 != nil {
		err = s.SHA1.Close()
		s.SHA1 = nil
	}
	if s.NTLM != nil {
		if cerr := s.NTLM.Close(); err == nil {
			err = cerr
		}
		s.NTLM = nil
	}
	return err
}

// LookupSHA1 returns the breach count for a SHA-1 digest.
func (s *Stores) LookupSHA1(digest []byte) (int32, bool) {
	r, ok := s.SHA1.Search(digest)
	if !ok {
		return 0, false
	}
	return r.Count, true
}

// LookupNTLM returns the breach count for an NTLM digest.
func (s *Stores) LookupNTLM(digest []byte) (int32, bool) {
	r, ok := s.NTLM.Search(digest)
	if !ok {
		return 0, false
	}
	return r.Count, true
}

// RangeSHA1 appends the k-anonymity response body for a range prefix:
// one "SUFFIX:COUNT\r\n" line per record, byte-compatible with the
// upstream range API so a mirror can serve the downloader.
func (s *Stores) RangeSHA1(prefix uint32, dst []byte) []byte {
	lo, hi := s.SHA1.PrefixRange(prefix)
	var hexbuf []byte
	for i := lo; i < hi; i++ {
		r := s.SHA1.At(i)
		hexbuf = record.AppendHex(hexbuf[:0], r.Digest[:])
		dst = appendRangeLine(dst, hexbuf, r.Count)
	}
	return dst
}

// RangeNTLM appends the NTLM-mode response body for a range prefix.
func (s *Stores) RangeNTLM(prefix uint32, dst []byte) []byte {
	lo, hi := s.NTLM.PrefixRange(prefix)
	var hexbuf []byte
	for i := lo; i < hi; i++ {
		r := s.NTLM.At(i)
		hexbuf = record.AppendHex(hexbuf[:0], r.Digest[:])
		dst = appendRangeLine(dst, hexbuf, r.Count)
	}
	return dst
}

// appendRangeLine writes the digest hex minus its range prefix, the
// count, and the CRLF terminator the upstream API uses.
func appendRangeLine(dst, digestHex []byte, count int32) []byte {
	dst = append(dst, digestHex[record.PrefixLen:]...)
	dst = append(dst, ':')
	dst = strconv.AppendInt(dst, int64(count), 10)
	return append(dst, '\r', '\n')
}
