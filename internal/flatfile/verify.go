package flatfile

import (
	"bytes"
	"fmt"
)

// Verify scans the whole database and checks that digests are strictly
// increasing. Binary search and prefix intervals are only meaningful on
// a sorted file, so search tools run this before trusting a database of
// unknown provenance.
func Verify[R any](db *DB[R]) error {
	for i := int64(1); i < db.n; i++ {
		if bytes.Compare(db.digestAt(i-1), db.digestAt(i)) >= 0 {
			return fmt.Errorf("record %d out of order", i)
		}
	}
	return nil
}
