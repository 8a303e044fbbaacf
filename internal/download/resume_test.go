package download

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/hibp/internal/flatfile"
	"github.com/GriffinCanCode/hibp/internal/record"
)

func writeSHA1DB(t *testing.T, path string, prefixes []uint32) {
	t.Helper()
	w, err := flatfile.Create[record.SHA1](record.SHA1Codec{}, path)
	require.NoError(t, err)
	for i, p := range prefixes {
		var r record.SHA1
		record.PrefixFloor(r.Digest[:], p)
		r.Digest[19] = byte(i) // keep digests strictly increasing
		r.Count = int32(i)
		require.NoError(t, w.Add(r))
	}
	require.NoError(t, w.Close())
}

func TestResumePoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sha1.bin")
	writeSHA1DB(t, path, []uint32{0x00000, 0x00000, 0x00001, 0x00001, 0x00001})

	r, err := ResumePoint[record.SHA1](record.SHA1Codec{}, path)
	require.NoError(t, err)
	assert.EqualValues(t, 0x00001, r.NextPrefix)
	assert.EqualValues(t, 2, r.Keep)
	assert.NoError(t, r.Validate(record.PrefixCount))
}

func TestResumePointEmptyDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sha1.bin")
	writeSHA1DB(t, path, nil)

	r, err := ResumePoint[record.SHA1](record.SHA1Codec{}, path)
	require.NoError(t, err)
	assert.Zero(t, r.NextPrefix)
	assert.Zero(t, r.Keep)
}

func TestResumeValidate(t *testing.T) {
	r := Resume{NextPrefix: 0x00010}
	assert.NoError(t, r.Validate(0x00011))
	assert.ErrorIs(t, r.Validate(0x00010), ErrNothingToResume)
	assert.ErrorIs(t, r.Validate(0x00001), ErrNothingToResume)
}

func TestResumeContinuesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sha1.bin")
	// An interrupted run wrote range 0 fully and part of range 1.
	writeSHA1DB(t, path, []uint32{0x00000, 0x00000, 0x00001})

	r, err := ResumePoint[record.SHA1](record.SHA1Codec{}, path)
	require.NoError(t, err)
	assert.EqualValues(t, 0x00001, r.NextPrefix)

	w, existing, err := flatfile.Append[record.SHA1](record.SHA1Codec{}, path)
	require.NoError(t, err)
	require.EqualValues(t, 3, existing)
	require.NoError(t, w.Truncate(r.Keep))

	// The resumed run refetches range 1 whole.
	for i := 0; i < 2; i++ {
		var rec record.SHA1
		record.PrefixFloor(rec.Digest[:], 0x00001)
		rec.Digest[19] = byte(0x10 + i)
		rec.Count = int32(i)
		require.NoError(t, w.Add(rec))
	}
	require.NoError(t, w.Close())

	db, err := flatfile.Open[record.SHA1](record.SHA1Codec{}, path)
	require.NoError(t, err)
	defer db.Close()
	require.EqualValues(t, 4, db.Len())
	require.NoError(t, flatfile.Verify(db))

	lo, hi := db.PrefixRange(0x00001)
	assert.EqualValues(t, 2, lo)
	assert.EqualValues(t, 4, hi)
}
