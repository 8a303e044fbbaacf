package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/GriffinCanCode/hibp/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/hibp/internal/record"
)

// fetcher is the transfer engine the pipeline drives. Submit registers
// a transfer writing into the unit; Run is the fetch goroutine's body
// and returns once stopped or on the first transfer fault; RequestStop
// asks Run to return at its next opportunity; Remove detaches and
// releases one unit's transfer, exactly once even if called again;
// Close releases the engine's resources.
type fetcher interface {
	Submit(u *Unit) error
	Run() error
	RequestStop()
	Remove(u *Unit) error
	Close() error
}

// FetcherConfig configures the HTTP transfer engine.
type FetcherConfig struct {
	BaseURL   string        // range API root, default https://api.pwnedpasswords.com
	UserAgent string        // sent on every request
	NTLM      bool          // request the NTLM corpus instead of SHA-1
	Timeout   time.Duration // per-request timeout
	Retries   int           // transport-level retries inside one transfer
}

func (c *FetcherConfig) withDefaults() FetcherConfig {
	out := *c
	if out.BaseURL == "" {
		out.BaseURL = "https://api.pwnedpasswords.com"
	}
	if out.UserAgent == "" {
		out.UserAgent = "hibp-download/1.0"
	}
	if out.Timeout == 0 {
		out.Timeout = 30 * time.Second
	}
	return out
}

// result is what a transfer goroutine hands the Run loop. The body
// travels here rather than being written into the unit so that only
// the Run loop, during its handshake phase, ever touches unit fields.
type result struct {
	unit *Unit
	body []byte
	err  error
	took time.Duration
}

// httpFetcher fetches ranges over HTTP/2 with up to one transfer
// goroutine per in-flight unit. Completions funnel through a buffered
// channel into Run, which marks units and works the handshake.
type httpFetcher struct {
	cfg     FetcherConfig
	client  *resty.Client
	hs      *handshake
	q       *queues
	log     *zap.Logger
	metrics *monitoring.DownloadMetrics

	results  chan result
	stopc    chan struct{}
	stopOnce sync.Once

	mu        sync.Mutex
	transfers map[*Unit]context.CancelFunc

	wg        sync.WaitGroup
	latencies []float64
}

func newHTTPFetcher(cfg FetcherConfig, parallelMax int, hs *handshake, q *queues, log *zap.Logger, metrics *monitoring.DownloadMetrics) *httpFetcher {
	cfg = cfg.withDefaults()

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Retries
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 30 * time.Second
	retryClient.Logger = nil

	if t, ok := retryClient.HTTPClient.Transport.(*http.Transport); ok {
		t.MaxIdleConnsPerHost = parallelMax
		// The range API serves HTTP/2; hundreds of concurrent
		// transfers multiplex onto a handful of connections.
		if h2, err := http2.ConfigureTransports(t); err == nil {
			h2.ReadIdleTimeout = 30 * time.Second
		}
	}

	restyClient := resty.New()
	restyClient.
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(30 * time.Second).
		SetHeader("User-Agent", cfg.UserAgent).
		// Asking for gzip ourselves turns off the transport's
		// transparent decompression; we inflate below.
		SetHeader("Accept-Encoding", "gzip")
	restyClient.SetTransport(retryClient.HTTPClient.Transport)

	return &httpFetcher{
		cfg:       cfg,
		client:    restyClient,
		hs:        hs,
		q:         q,
		log:       log,
		metrics:   metrics,
		results:   make(chan result, parallelMax),
		stopc:     make(chan struct{}),
		transfers: make(map[*Unit]context.CancelFunc),
	}
}

// Submit starts a transfer for the unit's range. Called by the
// coordinating goroutine during admission.
func (f *httpFetcher) Submit(u *Unit) error {
	ctx, cancel := context.WithCancel(context.Background())
	f.mu.Lock()
	f.transfers[u] = cancel
	f.mu.Unlock()

	if f.metrics != nil {
		f.metrics.TransfersInflight.Inc()
	}
	f.wg.Add(1)
	go f.transfer(ctx, u)
	return nil
}

// transfer fetches one range and delivers the outcome to the Run loop.
// It never touches the unit's fields.
func (f *httpFetcher) transfer(ctx context.Context, u *Unit) {
	defer f.wg.Done()
	start := time.Now()
	body, err := f.get(ctx, u.Prefix)
	select {
	case f.results <- result{unit: u, body: body, err: err, took: time.Since(start)}:
	case <-f.stopc:
	}
}

func (f *httpFetcher) get(ctx context.Context, prefix uint32) ([]byte, error) {
	path := "/range/" + record.PrefixHex(prefix)
	if f.cfg.NTLM {
		path += "?mode=ntlm"
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(path)
	if err != nil {
		return nil, &TransferError{Prefix: prefix, Err: err}
	}
	raw := resp.RawBody()
	defer raw.Close()

	if resp.StatusCode() != http.StatusOK {
		io.Copy(io.Discard, raw)
		return nil, &TransferError{Prefix: prefix, Status: resp.StatusCode()}
	}

	var rd io.Reader = raw
	if strings.Contains(resp.Header().Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(raw)
		if err != nil {
			return nil, &TransferError{Prefix: prefix, Err: fmt.Errorf("gzip: %w", err)}
		}
		defer gz.Close()
		rd = gz
	}

	body, err := io.ReadAll(rd)
	if err != nil {
		return nil, &TransferError{Prefix: prefix, Err: err}
	}
	return body, nil
}

// Run consumes completions, marks units and hands the queues over
// whenever the oldest in-flight unit is complete. It returns nil once
// stopped, or the first transfer fault.
func (f *httpFetcher) Run() error {
	for {
		var r result
		select {
		case <-f.stopc:
			return nil
		case r = <-f.results:
		}

		f.release(r.unit)
		status := "200"
		if r.err != nil {
			var terr *TransferError
			if errors.As(r.err, &terr) && terr.Status != 0 {
				status = strconv.Itoa(terr.Status)
			} else {
				status = "error"
			}
		}
		if f.metrics != nil {
			f.metrics.RecordTransfer(status, len(r.body), r.took)
		}
		if r.err != nil {
			return r.err
		}

		r.unit.Body = r.body
		r.unit.Complete = true
		f.latencies = append(f.latencies, r.took.Seconds())
		f.log.Debug("range complete",
			zap.String("range", r.unit.Range()),
			zap.Int("bytes", len(r.body)),
			zap.Duration("took", r.took))

		if front := f.q.front(); front != nil && front.Complete {
			if !f.hs.handOff() {
				return nil
			}
		}
	}
}

// RequestStop asks Run to return. Transfer goroutines still in flight
// abandon their results instead of blocking.
func (f *httpFetcher) RequestStop() {
	f.stopOnce.Do(func() { close(f.stopc) })
}

// Remove detaches the unit's transfer and cancels its request. Safe to
// call for units whose transfer already finished.
func (f *httpFetcher) Remove(u *Unit) error {
	f.mu.Lock()
	cancel, ok := f.transfers[u]
	if ok {
		delete(f.transfers, u)
	}
	f.mu.Unlock()
	if ok {
		cancel()
	}
	return nil
}

// release drops the finished transfer's handle and bookkeeping.
func (f *httpFetcher) release(u *Unit) {
	f.Remove(u)
	if f.metrics != nil {
		f.metrics.TransfersInflight.Dec()
	}
}

// Close waits for transfer goroutines to drain and releases the HTTP
// client's connections.
func (f *httpFetcher) Close() error {
	f.wg.Wait()
	f.client.GetClient().CloseIdleConnections()
	return nil
}

// Latencies returns per-transfer durations in seconds, in completion
// order. Only valid after Run has returned.
func (f *httpFetcher) Latencies() []float64 { return f.latencies }
