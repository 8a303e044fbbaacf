package flatfile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/edsrzf/mmap-go"

	"github.com/GriffinCanCode/hibp/internal/record"
)

// ErrTruncated reports a database file whose size is not a whole
// number of records.
var ErrTruncated = errors.New("database size is not a multiple of the record size")

// DB is a read-only view over a database file. The file is memory
// mapped, so At and Search cost no syscalls after Open. Safe for
// concurrent readers.
type DB[R any] struct {
	codec record.Codec[R]
	f     *os.File
	m     mmap.MMap
	n     int64
}

// Open memory-maps the database at path.
func Open[R any](c record.Codec[R], path string) (*DB[R], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat database: %w", err)
	}
	size := fi.Size()
	if size%int64(c.Size()) != 0 {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrTruncated)
	}
	db := &DB[R]{codec: c, f: f, n: size / int64(c.Size())}
	if size > 0 {
		m, err := mmap.Map(f, mmap.RDONLY, 0)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("map database: %w", err)
		}
		db.m = m
	}
	return db, nil
}

// Close unmaps and closes the database.
func (db *DB[R]) Close() error {
	var err error
	if db.m != nil {
		err = db.m.Unmap()
		db.m = nil
	}
	if cerr := db.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Len returns the number of records.
func (db *DB[R]) Len() int64 { return db.n }

// At decodes the record at index i.
func (db *DB[R]) At(i int64) R {
	off := i * int64(db.codec.Size())
	return db.codec.Decode(db.m[off : off+int64(db.codec.Size())])
}

// digestAt returns the raw digest bytes of record i without decoding.
// Records lay the digest first, so this is a prefix of the record.
func (db *DB[R]) digestAt(i int64) []byte {
	off := i * int64(db.codec.Size())
	return db.m[off : off+int64(db.codec.DigestSize())]
}

// lowerBound returns the index of the first record whose digest is not
// less than digest.
func (db *DB[R]) lowerBound(digest []byte) int64 {
	return int64(sort.Search(int(db.n), func(i int) bool {
		return bytes.Compare(db.digestAt(int64(i)), digest) >= 0
	}))
}

// Search looks up a record by digest. ok reports whether it was found.
func (db *DB[R]) Search(digest []byte) (r R, ok bool) {
	i := db.lowerBound(digest)
	if i == db.n || !bytes.Equal(db.digestAt(i), digest) {
		return r, false
	}
	return db.At(i), true
}

// PrefixRange returns the half-open record index interval [lo, hi)
// holding every digest that starts with the 20-bit range prefix.
// Records are digest-sorted, so the interval is contiguous.
func (db *DB[R]) PrefixRange(prefix uint32) (lo, hi int64) {
	floor := make([]byte, db.codec.DigestSize())
	record.PrefixFloor(floor, prefix)
	lo = db.lowerBound(floor)
	if prefix+1 >= record.PrefixCount {
		return lo, db.n
	}
	record.PrefixFloor(floor, prefix+1)
	return lo, db.lowerBound(floor)
}

// LastPrefix returns the range prefix of the final record. ok is false
// for an empty database.
func (db *DB[R]) LastPrefix() (prefix uint32, ok bool) {
	if db.n == 0 {
		return 0, false
	}
	return record.DigestPrefix(db.digestAt(db.n - 1)), true
}
