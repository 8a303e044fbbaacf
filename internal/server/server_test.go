package server

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/hibp/internal/flatfile"
	"github.com/GriffinCanCode/hibp/internal/record"
)

// sha1Rec builds a record inside a given range prefix with a
// distinguishing final byte.
func sha1Rec(prefix uint32, tail byte, count int32) record.SHA1 {
	var r record.SHA1
	record.PrefixFloor(r.Digest[:], prefix)
	r.Digest[19] = tail
	r.Count = count
	return r
}

func ntlmRec(prefix uint32, tail byte, count int32) record.NTLM {
	var r record.NTLM
	record.PrefixFloor(r.Digest[:], prefix)
	r.Digest[15] = tail
	r.Count = count
	return r
}

func writeSHA1DB(t *testing.T, path string, recs []record.SHA1) {
	t.Helper()
	c := record.SHA1Codec{}
	sort.Slice(recs, func(i, j int) bool { return c.Compare(recs[i], recs[j]) < 0 })
	w, err := flatfile.Create[record.SHA1](c, path)
	require.NoError(t, err)
	for _, r := range recs {
		require.NoError(t, w.Add(r))
	}
	require.NoError(t, w.Close())
}

func writeNTLMDB(t *testing.T, path string, recs []record.NTLM) {
	t.Helper()
	c := record.NTLMCodec{}
	sort.Slice(recs, func(i, j int) bool { return c.Compare(recs[i], recs[j]) < 0 })
	w, err := flatfile.Create[record.NTLM](c, path)
	require.NoError(t, err)
	for _, r := range recs {
		require.NoError(t, w.Add(r))
	}
	require.NoError(t, w.Close())
}

// testServer maps small fixture corpora and returns the assembled
// server. The SHA-1 corpus holds the digest of "password123" so the
// plaintext path has a known hit.
func testServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()
	dir := t.TempDir()

	known := record.SHA1Sum("password123")
	known.Count = 77
	writeSHA1DB(t, filepath.Join(dir, "sha1.bin"), []record.SHA1{
		sha1Rec(0x00000, 0x01, 3),
		sha1Rec(0x00000, 0x02, 9),
		sha1Rec(0xABCDE, 0x10, 42),
		sha1Rec(0xABCDE, 0x11, 5),
		known,
	})
	writeNTLMDB(t, filepath.Join(dir, "ntlm.bin"), []record.NTLM{
		ntlmRec(0xABCDE, 0x20, 12),
	})

	cfg := Config{
		Host:        "127.0.0.1",
		Port:        "0",
		SHA1DB:      filepath.Join(dir, "sha1.bin"),
		NTLMDB:      filepath.Join(dir, "ntlm.bin"),
		CacheSize:   16,
		Development: true,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	srv, err := New(cfg, zap.NewNop(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { srv.stores.Close() })
	return srv
}

func get(srv *Server, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", path, nil)
	srv.Router().ServeHTTP(w, req)
	return w
}

// sha1Suffix renders the part of a digest the range response carries:
// full hex minus the five prefix characters.
func sha1Suffix(r record.SHA1) string {
	return string(record.AppendHex(nil, r.Digest[:]))[record.PrefixLen:]
}

func ntlmSuffix(r record.NTLM) string {
	return string(record.AppendHex(nil, r.Digest[:]))[record.PrefixLen:]
}

func TestRangeServesUpstreamFormat(t *testing.T) {
	srv := testServer(t, nil)

	w := get(srv, "/range/ABCDE")
	require.Equal(t, http.StatusOK, w.Code)

	want := sha1Suffix(sha1Rec(0xABCDE, 0x10, 42)) + ":42\r\n" +
		sha1Suffix(sha1Rec(0xABCDE, 0x11, 5)) + ":5\r\n"
	assert.Equal(t, want, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
}

func TestRangeEmptyPrefix(t *testing.T) {
	srv := testServer(t, nil)

	w := get(srv, "/range/FFFFF")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestRangeNTLMMode(t *testing.T) {
	srv := testServer(t, nil)

	w := get(srv, "/range/ABCDE?mode=ntlm")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ntlmSuffix(ntlmRec(0xABCDE, 0x20, 12))+":12\r\n", w.Body.String())
}

func TestRangeRejectsBadPrefix(t *testing.T) {
	srv := testServer(t, nil)

	for _, p := range []string{"XYZ12", "ABC", "ABCDEF"} {
		w := get(srv, "/range/"+p)
		assert.Equal(t, http.StatusBadRequest, w.Code, "prefix %q", p)
	}
}

func TestRangeCachedBodyStable(t *testing.T) {
	srv := testServer(t, nil)

	first := get(srv, "/range/ABCDE")
	second := get(srv, "/range/ABCDE")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestCheckSHA1(t *testing.T) {
	srv := testServer(t, nil)
	hit := sha1Rec(0xABCDE, 0x10, 42)
	hex := string(record.AppendHex(nil, hit.Digest[:]))

	w := get(srv, "/check/sha1/"+hex)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", w.Body.String())

	// Lowercase input resolves to the same digest.
	w = get(srv, "/check/sha1/"+strings.ToLower(hex))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", w.Body.String())
}

func TestCheckSHA1Missing(t *testing.T) {
	srv := testServer(t, nil)

	w := get(srv, "/check/sha1/FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Body.String())
}

func TestCheckSHA1MalformedHash(t *testing.T) {
	srv := testServer(t, nil)

	for _, h := range []string{"123", "ZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZ"} {
		w := get(srv, "/check/sha1/"+h)
		assert.Equal(t, http.StatusBadRequest, w.Code, "hash %q", h)
	}
}

func TestCheckNTLM(t *testing.T) {
	srv := testServer(t, nil)
	hit := ntlmRec(0xABCDE, 0x20, 12)
	hex := string(record.AppendHex(nil, hit.Digest[:]))

	w := get(srv, "/check/ntlm/"+hex)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "12", w.Body.String())
}

func TestCheckPlain(t *testing.T) {
	srv := testServer(t, nil)

	w := get(srv, "/check/plain/password123")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "77", w.Body.String())

	// Second hit comes from the cache with the same answer.
	w = get(srv, "/check/plain/password123")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "77", w.Body.String())
}

func TestCheckPlainPerfTestSaltsProbe(t *testing.T) {
	srv := testServer(t, func(cfg *Config) { cfg.PerfTest = true })

	// The salt makes the known password miss.
	w := get(srv, "/check/plain/password123")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Body.String())
}

func TestCheckJSONMode(t *testing.T) {
	srv := testServer(t, func(cfg *Config) { cfg.JSON = true })

	w := get(srv, "/check/plain/password123")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	var res struct {
		Found bool  `json:"found"`
		Count int32 `json:"count"`
	}
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Found)
	assert.Equal(t, int32(77), res.Count)
}

func TestCorpusNotLoaded(t *testing.T) {
	srv := testServer(t, func(cfg *Config) { cfg.NTLMDB = "" })

	w := get(srv, "/check/ntlm/00000000000000000000000000000000")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = get(srv, "/range/ABCDE?mode=ntlm")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOpenStoresRequiresOne(t *testing.T) {
	_, err := OpenStores("", "")
	assert.ErrorIs(t, err, ErrNoDatabases)
}

func TestHealth(t *testing.T) {
	srv := testServer(t, nil)

	w := get(srv, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sha1"`)
	assert.Contains(t, w.Body.String(), `"ntlm"`)
	assert.Contains(t, w.Body.String(), `"healthy"`)
}
