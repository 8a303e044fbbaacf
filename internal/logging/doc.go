// Package logging provides structured logging using uber/zap.
//
// Two modes cover the tools' needs:
//   - Production: JSON output for machine parsing
//   - Development: colored console output for human readability
//
// Everything logs to stderr. stdout is reserved for tool output such
// as hibp-search results, and the downloader's progress meter owns the
// stderr line between log records.
//
// Example usage:
//
//	logger := logging.NewDefault()
//	logger.Info("server starting", zap.String("addr", addr))
//	logger.Error("lookup failed", zap.Error(err))
//
// The pipeline names its goroutines' loggers (logger.Named("fetch"))
// so a fault report identifies the failing side.
package logging
