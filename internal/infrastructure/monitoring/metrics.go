package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DownloadMetrics holds the mirror pipeline's Prometheus metrics.
type DownloadMetrics struct {
	TransfersTotal    *prometheus.CounterVec
	TransferDuration  prometheus.Histogram
	TransferBytes     prometheus.Counter
	TransfersInflight prometheus.Gauge
	RangesWritten     prometheus.Counter
	RecordsWritten    prometheus.Counter
}

// NewDownloadMetrics creates the downloader's metrics collector.
func NewDownloadMetrics() *DownloadMetrics {
	return &DownloadMetrics{
		TransfersTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hibp_download_transfers_total",
				Help: "Total number of range transfers by status",
			},
			[]string{"status"},
		),
		TransferDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hibp_download_transfer_duration_seconds",
				Help:    "Range transfer duration in seconds",
				Buckets: []float64{.025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		TransferBytes: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "hibp_download_transfer_bytes_total",
				Help: "Total payload bytes received, after decompression",
			},
		),
		TransfersInflight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "hibp_download_transfers_inflight",
				Help: "Number of range transfers currently in flight",
			},
		),
		RangesWritten: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "hibp_download_ranges_written_total",
				Help: "Total number of ranges converted and written out",
			},
		),
		RecordsWritten: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "hibp_download_records_written_total",
				Help: "Total number of records written to the database",
			},
		),
	}
}

// RecordTransfer records one finished range transfer.
func (m *DownloadMetrics) RecordTransfer(status string, payloadBytes int, duration time.Duration) {
	m.TransfersTotal.WithLabelValues(status).Inc()
	m.TransferDuration.Observe(duration.Seconds())
	m.TransferBytes.Add(float64(payloadBytes))
}

// RecordRange records one range written out with its record count.
func (m *DownloadMetrics) RecordRange(records int64) {
	m.RangesWritten.Inc()
	m.RecordsWritten.Add(float64(records))
}

// ServerMetrics holds the query server's Prometheus metrics.
type ServerMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	LookupsTotal    *prometheus.CounterVec
	LookupDuration  *prometheus.HistogramVec
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	DBRecords       *prometheus.GaugeVec
	Uptime          prometheus.Gauge

	startTime time.Time
}

// NewServerMetrics creates the query server's metrics collector.
func NewServerMetrics() *ServerMetrics {
	m := &ServerMetrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hibp_server_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hibp_server_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method", "path"},
		),
		LookupsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hibp_server_lookups_total",
				Help: "Total number of hash lookups by corpus and outcome",
			},
			[]string{"corpus", "outcome"},
		),
		LookupDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hibp_server_lookup_duration_seconds",
				Help:    "Database lookup duration in seconds",
				Buckets: []float64{.000001, .0000025, .000005, .00001, .000025, .00005, .0001, .00025, .0005, .001},
			},
			[]string{"corpus"},
		),
		CacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "hibp_server_cache_hits_total",
				Help: "Total number of lookup cache hits",
			},
		),
		CacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "hibp_server_cache_misses_total",
				Help: "Total number of lookup cache misses",
			},
		),
		DBRecords: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hibp_server_db_records",
				Help: "Number of records in each loaded database",
			},
			[]string{"corpus"},
		),
		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "hibp_server_uptime_seconds",
				Help: "Server uptime in seconds",
			},
		),
	}

	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric.
func (m *ServerMetrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request.
func (m *ServerMetrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordLookup records one hash lookup against a corpus database.
func (m *ServerMetrics) RecordLookup(corpus string, found bool, duration time.Duration) {
	outcome := "missing"
	if found {
		outcome = "found"
	}
	m.LookupsTotal.WithLabelValues(corpus, outcome).Inc()
	m.LookupDuration.WithLabelValues(corpus).Observe(duration.Seconds())
}

// RecordCache records a lookup cache probe.
func (m *ServerMetrics) RecordCache(hit bool) {
	if hit {
		m.CacheHits.Inc()
	} else {
		m.CacheMisses.Inc()
	}
}

// SetDBRecords publishes the size of a loaded database.
func (m *ServerMetrics) SetDBRecords(corpus string, records int64) {
	m.DBRecords.WithLabelValues(corpus).Set(float64(records))
}
