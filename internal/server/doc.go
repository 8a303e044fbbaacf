// Package server answers password exposure queries from downloaded
// corpus databases over HTTP.
//
// Endpoints:
//   - GET /range/:prefix serves a k-anonymity range in the upstream
//     wire format ("?mode=ntlm" selects the NTLM corpus), so a mirror
//     can stand in for the upstream API.
//   - GET /check/sha1/:hash and /check/ntlm/:hash look up a full
//     digest.
//   - GET /check/plain/:password digests a plaintext password and
//     looks it up in the SHA-1 corpus.
//   - GET /health and /metrics expose liveness and Prometheus data.
//
// The databases are memory mapped once at startup and every lookup is
// a binary search over the map, so the server carries no per-request
// allocation besides the response body. Rendered range bodies are
// cached in an LRU keyed by corpus and prefix.
//
// Example Usage:
//
//	srv, err := server.New(cfg, logger, metrics)
//	if err != nil {
//	    logger.Fatal("server init", zap.Error(err))
//	}
//	go srv.Run()
//	...
//	srv.Shutdown(ctx)
package server
