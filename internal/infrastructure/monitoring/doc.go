/*
Package monitoring provides Prometheus metrics for the downloader and
the query server.

# Overview

Two collectors cover the two long-running binaries: DownloadMetrics
tracks the mirror pipeline (transfers, payload bytes, written records),
ServerMetrics tracks the query server (HTTP traffic, lookups, cache
effectiveness).

# Usage

	// Downloader
	dm := monitoring.NewDownloadMetrics()
	dm.RecordTransfer("200", bytes, elapsed)

	// Server
	sm := monitoring.NewServerMetrics()
	router.Use(monitoring.Middleware(sm))
	sm.RecordLookup("sha1", true, elapsed)

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
