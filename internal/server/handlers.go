package server

import (
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/hibp/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/hibp/internal/record"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	stores  *Stores
	cache   *Cache
	log     *zap.Logger
	metrics *monitoring.ServerMetrics

	json     bool
	perfTest bool
}

// NewHandlers creates a new handler set.
func NewHandlers(stores *Stores, cache *Cache, log *zap.Logger, metrics *monitoring.ServerMetrics, json, perfTest bool) *Handlers {
	return &Handlers{
		stores:   stores,
		cache:    cache,
		log:      log,
		metrics:  metrics,
		json:     json,
		perfTest: perfTest,
	}
}

// checkResult is the JSON body of a /check answer.
type checkResult struct {
	Found bool  `json:"found"`
	Count int32 `json:"count"`
}

// Root describes the service.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "hibp-server",
		"version": "1.0",
	})
}

// Health reports the loaded corpora and cache state.
func (h *Handlers) Health(c *gin.Context) {
	corpora := gin.H{}
	if h.stores.SHA1 != nil {
		corpora["sha1"] = gin.H{"records": h.stores.SHA1.Len()}
	}
	if h.stores.NTLM != nil {
		corpora["ntlm"] = gin.H{"records": h.stores.NTLM.Len()}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"corpora": corpora,
		"cache":   gin.H{"entries": h.cache.Len()},
	})
}

// Range serves a k-anonymity range query in the upstream API's wire
// format: GET /range/:prefix, "?mode=ntlm" for the NTLM corpus. The
// body is "SUFFIX:COUNT" lines with CRLF endings, so the download tool
// can point at a mirror as its base URL.
func (h *Handlers) Range(c *gin.Context) {
	prefix, err := record.ParsePrefix(c.Param("prefix"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	corpus := "sha1"
	if c.Query("mode") == "ntlm" {
		corpus = "ntlm"
	}

	key := corpus + ":" + record.PrefixHex(prefix)
	if body, ok := h.cache.Get(key); ok {
		c.Data(http.StatusOK, "text/plain; charset=utf-8", body)
		return
	}

	timer := monitoring.NewTimer(h.metrics, corpus)
	var body []byte
	switch corpus {
	case "ntlm":
		if h.stores.NTLM == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "ntlm corpus not loaded"})
			return
		}
		body = h.stores.RangeNTLM(prefix, nil)
	default:
		if h.stores.SHA1 == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "sha1 corpus not loaded"})
			return
		}
		body = h.stores.RangeSHA1(prefix, nil)
	}
	timer.Stop(len(body) > 0)

	h.cache.Add(key, body)
	c.Data(http.StatusOK, "text/plain; charset=utf-8", body)
}

// CheckSHA1 looks up a full 40-hex SHA-1 digest.
func (h *Handlers) CheckSHA1(c *gin.Context) {
	if h.stores.SHA1 == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "sha1 corpus not loaded"})
		return
	}
	var digest [20]byte
	if err := record.ParseHexDigest(digest[:], c.Param("hash")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hash must be 40 hex characters"})
		return
	}

	timer := monitoring.NewTimer(h.metrics, "sha1")
	count, found := h.stores.LookupSHA1(digest[:])
	timer.Stop(found)

	h.respondCheck(c, checkResult{Found: found, Count: count})
}

// CheckNTLM looks up a full 32-hex NTLM digest.
func (h *Handlers) CheckNTLM(c *gin.Context) {
	if h.stores.NTLM == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "ntlm corpus not loaded"})
		return
	}
	var digest [16]byte
	if err := record.ParseHexDigest(digest[:], c.Param("hash")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hash must be 32 hex characters"})
		return
	}

	timer := monitoring.NewTimer(h.metrics, "ntlm")
	count, found := h.stores.LookupNTLM(digest[:])
	timer.Stop(found)

	h.respondCheck(c, checkResult{Found: found, Count: count})
}

// CheckPlain digests a plaintext password and looks it up in the SHA-1
// corpus. In perf-test mode the password is salted with a UUID per
// request, defeating the cache and randomizing the probe; the answers
// are wrong but the full lookup path gets exercised.
func (h *Handlers) CheckPlain(c *gin.Context) {
	if h.stores.SHA1 == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "sha1 corpus not loaded"})
		return
	}
	password := c.Param("password")
	if h.perfTest {
		password += uuid.NewString()
	}

	key := "plain:" + password
	if body, ok := h.cache.Get(key); ok {
		h.writeCheckBody(c, body)
		return
	}

	needle := record.SHA1Sum(password)

	timer := monitoring.NewTimer(h.metrics, "sha1")
	count, found := h.stores.LookupSHA1(needle.Digest[:])
	timer.Stop(found)

	body := h.renderCheck(c, checkResult{Found: found, Count: count})
	if body == nil {
		return
	}
	h.cache.Add(key, body)
	h.writeCheckBody(c, body)
}

func (h *Handlers) respondCheck(c *gin.Context, res checkResult) {
	body := h.renderCheck(c, res)
	if body == nil {
		return
	}
	h.writeCheckBody(c, body)
}

// renderCheck produces the response body for a lookup: the bare count
// in text mode, a small object in JSON mode. A nil return means the
// render failed and the request was already answered.
func (h *Handlers) renderCheck(c *gin.Context, res checkResult) []byte {
	if !h.json {
		return strconv.AppendInt(nil, int64(res.Count), 10)
	}
	body, err := sonic.Marshal(res)
	if err != nil {
		h.log.Error("marshal check response", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return nil
	}
	return body
}

func (h *Handlers) writeCheckBody(c *gin.Context, body []byte) {
	if h.json {
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", body)
}

// publishDBSizes pushes corpus record counts to the metrics registry.
func (h *Handlers) publishDBSizes() {
	if h.metrics == nil {
		return
	}
	if h.stores.SHA1 != nil {
		h.metrics.SetDBRecords("sha1", h.stores.SHA1.Len())
	}
	if h.stores.NTLM != nil {
		h.metrics.SetDBRecords("ntlm", h.stores.NTLM.Len())
	}
}
