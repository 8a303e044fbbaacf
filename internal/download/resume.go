package download

import (
	"fmt"

	"github.com/GriffinCanCode/hibp/internal/flatfile"
	"github.com/GriffinCanCode/hibp/internal/record"
)

// Resume describes where an interrupted mirror left off.
type Resume struct {
	NextPrefix uint32 // first range to fetch again
	Keep       int64  // records to keep from the existing database
}

// ResumePoint inspects an existing database and works out how to
// continue it. The last range present is re-fetched whole: the
// interrupted run may have written only part of it, and refetching one
// range is cheaper than proving it complete.
func ResumePoint[R any](c record.Codec[R], path string) (Resume, error) {
	db, err := flatfile.Open(c, path)
	if err != nil {
		return Resume{}, err
	}
	defer db.Close()

	last, ok := db.LastPrefix()
	if !ok {
		return Resume{}, nil
	}
	lo, _ := db.PrefixRange(last)
	return Resume{NextPrefix: last, Keep: lo}, nil
}

// Validate rejects resume points that contradict the requested run.
// A database that already covers everything below limit is reported as
// ErrNothingToResume so callers can treat it as a clean no-op.
func (r Resume) Validate(limit uint32) error {
	if r.NextPrefix >= limit {
		return fmt.Errorf("database already covers range %s, nothing left below limit %s: %w",
			record.PrefixHex(r.NextPrefix), record.PrefixHex(limit), ErrNothingToResume)
	}
	return nil
}
