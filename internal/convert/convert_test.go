package convert

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/hibp/internal/flatfile"
	"github.com/GriffinCanCode/hibp/internal/record"
)

var sha1Lines = []string{
	"0000000000000000000000000000000000000001:10",
	"00000000000000000000000000000000000000FF:65535",
	"00000FA3BC27AE8C7E0C1E0C1E0C1E0C1E0C1E0C:3",
	"ABCDEF0123456789ABCDEF0123456789ABCDEF01:42",
}

func writeTextFile(t *testing.T, path string, lines []string, crlf bool) {
	t.Helper()
	sep := "\n"
	if crlf {
		sep = "\r\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, sep)+sep), 0o644))
}

func writeGzipFile(t *testing.T, path string, lines []string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func importSHA1(t *testing.T, inputs []string, lenient bool) (Stats, string, error) {
	t.Helper()
	out := filepath.Join(t.TempDir(), "out.sha1.bin")
	w, err := flatfile.Create[record.SHA1](record.SHA1Codec{}, out)
	require.NoError(t, err)
	stats, impErr := Import[record.SHA1](record.SHA1Codec{}, inputs, w, lenient)
	require.NoError(t, w.Close())
	return stats, out, impErr
}

func TestImportRoundTrip(t *testing.T) {
	in := filepath.Join(t.TempDir(), "dump.txt")
	writeTextFile(t, in, sha1Lines, true) // upstream dumps are CRLF

	stats, out, err := importSHA1(t, []string{in}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Files)
	assert.EqualValues(t, 4, stats.Lines)
	assert.EqualValues(t, 4, stats.Records)

	db, err := flatfile.Open[record.SHA1](record.SHA1Codec{}, out)
	require.NoError(t, err)
	defer db.Close()
	require.EqualValues(t, 4, db.Len())
	require.NoError(t, flatfile.Verify(db))

	var buf bytes.Buffer
	n, err := Export[record.SHA1](record.SHA1Codec{}, db, &buf)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
	assert.Equal(t, strings.Join(sha1Lines, "\n")+"\n", buf.String())
}

func TestImportGzipInput(t *testing.T) {
	in := filepath.Join(t.TempDir(), "dump.txt.gz")
	writeGzipFile(t, in, sha1Lines)

	stats, out, err := importSHA1(t, []string{in}, false)
	require.NoError(t, err)
	assert.EqualValues(t, 4, stats.Records)

	db, err := flatfile.Open[record.SHA1](record.SHA1Codec{}, out)
	require.NoError(t, err)
	defer db.Close()
	assert.EqualValues(t, 4, db.Len())
}

func TestImportOrderCarriesAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	writeTextFile(t, a, sha1Lines[:2], false)
	writeTextFile(t, b, sha1Lines[2:], false)

	stats, _, err := importSHA1(t, []string{a, b}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Files)
	assert.EqualValues(t, 4, stats.Records)

	// The same files in the wrong order break the corpus order.
	_, _, err = importSHA1(t, []string{b, a}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of order")
}

func TestImportStrictRejectsMalformed(t *testing.T) {
	in := filepath.Join(t.TempDir(), "dump.txt")
	writeTextFile(t, in, []string{
		sha1Lines[0],
		"not a corpus line",
	}, false)

	_, _, err := importSHA1(t, []string{in}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dump.txt:2")
}

func TestImportStrictRejectsSwappedPair(t *testing.T) {
	in := filepath.Join(t.TempDir(), "dump.txt")
	writeTextFile(t, in, []string{sha1Lines[1], sha1Lines[0]}, false)

	_, _, err := importSHA1(t, []string{in}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of order")
}

func TestImportLenient(t *testing.T) {
	in := filepath.Join(t.TempDir(), "dump.txt")
	writeTextFile(t, in, []string{
		"0000000000000000000000000000000000000001:10",
		"000000000000000000000000000000000000000G:5", // bad digest
		"0000000000000000000000000000000000000002:xx", // bad count, digest kept
		"0000000000000000000000000000000000000001:7", // behind the previous digest
		"0000000000000000000000000000000000000003:30",
	}, false)

	stats, out, err := importSHA1(t, []string{in}, true)
	require.NoError(t, err)
	assert.EqualValues(t, 5, stats.Lines)
	assert.EqualValues(t, 3, stats.Records)
	assert.EqualValues(t, 1, stats.Malformed)
	assert.EqualValues(t, 1, stats.BadCounts)
	assert.EqualValues(t, 1, stats.OutOfOrder)

	db, err := flatfile.Open[record.SHA1](record.SHA1Codec{}, out)
	require.NoError(t, err)
	defer db.Close()
	require.EqualValues(t, 3, db.Len())
	require.NoError(t, flatfile.Verify(db))
	assert.EqualValues(t, -1, db.At(1).Count)
}

func TestImportNTLM(t *testing.T) {
	in := filepath.Join(t.TempDir(), "dump.txt")
	writeTextFile(t, in, []string{
		"00000000000000000000000000000001:5",
		"FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF:9",
	}, true)

	out := filepath.Join(t.TempDir(), "out.ntlm.bin")
	w, err := flatfile.Create[record.NTLM](record.NTLMCodec{}, out)
	require.NoError(t, err)
	stats, impErr := Import[record.NTLM](record.NTLMCodec{}, []string{in}, w, false)
	require.NoError(t, w.Close())
	require.NoError(t, impErr)
	assert.EqualValues(t, 2, stats.Records)

	db, err := flatfile.Open[record.NTLM](record.NTLMCodec{}, out)
	require.NoError(t, err)
	defer db.Close()
	require.EqualValues(t, 2, db.Len())
	assert.EqualValues(t, 5, db.At(0).Count)
}
