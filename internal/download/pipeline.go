package download

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gonum.org/v1/gonum/stat"

	"github.com/GriffinCanCode/hibp/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/hibp/internal/record"
)

// Config configures one mirror run.
type Config struct {
	StartPrefix uint32        // first range to fetch
	PrefixLimit uint32        // exclusive upper bound, default the whole address space
	ParallelMax int           // in-flight transfer cap
	WaitTimeout time.Duration // handshake wait bound
	Progress    bool          // render the in-place status line
	ProgressOut io.Writer     // status line destination, default stderr
	RatePerSec  float64       // admission rate cap, 0 means unlimited
}

func (c Config) withDefaults() Config {
	if c.PrefixLimit == 0 {
		c.PrefixLimit = record.PrefixCount
	}
	if c.ParallelMax == 0 {
		c.ParallelMax = 300
	}
	if c.WaitTimeout == 0 {
		c.WaitTimeout = 10 * time.Second
	}
	if c.ProgressOut == nil {
		c.ProgressOut = os.Stderr
	}
	return c
}

// Pipeline runs the two-goroutine mirror: a coordinating goroutine
// owning queues, progress and the write stage, and a fetch goroutine
// driving the transfers.
type Pipeline struct {
	cfg     Config
	fx      fetcher
	sink    Sink
	log     *zap.Logger
	metrics *monitoring.DownloadMetrics

	hs      *handshake
	q       *queues
	prog    progress
	limiter *rate.Limiter
	lineBuf []byte
}

// New builds a pipeline fetching over HTTP and writing to sink. The
// sink stays open afterwards; closing it is the caller's job.
func New(cfg Config, fcfg FetcherConfig, sink Sink, log *zap.Logger, metrics *monitoring.DownloadMetrics) *Pipeline {
	cfg = cfg.withDefaults()
	hs := newHandshake()
	q := newQueues(cfg.StartPrefix, cfg.PrefixLimit)
	fx := newHTTPFetcher(fcfg, cfg.ParallelMax, hs, q, log.Named("fetch"), metrics)
	return assemble(cfg, fx, hs, q, sink, log, metrics)
}

// assemble wires a pipeline around an existing transfer engine. The
// tests use it to substitute a scripted one.
func assemble(cfg Config, fx fetcher, hs *handshake, q *queues, sink Sink, log *zap.Logger, metrics *monitoring.DownloadMetrics) *Pipeline {
	cfg = cfg.withDefaults()
	p := &Pipeline{
		cfg:     cfg,
		fx:      fx,
		sink:    sink,
		log:     log,
		metrics: metrics,
		hs:      hs,
		q:       q,
	}
	p.prog = progress{
		out:     cfg.ProgressOut,
		enabled: cfg.Progress,
		total:   int64(cfg.PrefixLimit) - int64(cfg.StartPrefix),
	}
	if cfg.RatePerSec > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}
	return p
}

// Run mirrors every range in [StartPrefix, PrefixLimit). On any fault
// it releases all in-flight transfers and returns an AggregateError;
// the partial database can be continued with a resumed run.
func (p *Pipeline) Run(ctx context.Context) error {
	p.prog.start = time.Now()
	p.log.Info("download starting",
		zap.String("from", record.PrefixHex(p.cfg.StartPrefix)),
		zap.Int64("ranges", p.prog.total),
		zap.Int("parallel", p.cfg.ParallelMax))

	// Prime the in-flight queue before the fetch goroutine exists;
	// this first admission runs outside the handshake.
	if err := p.admit(ctx); err != nil {
		p.fx.RequestStop()
		p.fx.Close()
		return err
	}

	var fetchErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		fetchErr = p.fx.Run()
	}()

	coordErr := p.serve(ctx)

	// Ask the fetch side to stop and free a hand-off parked in the
	// handshake, then join before touching any shared state.
	p.fx.RequestStop()
	p.hs.interrupt()
	<-done

	return p.finish(fetchErr, coordErr)
}

// serve is the coordinating loop: wait for the fetch side to yield,
// shuffle completed ranges off the in-flight front, top the queue up,
// hand the turn back, then convert and write while the fetch side is
// busy on the network.
func (p *Pipeline) serve(ctx context.Context) error {
	for p.q.pending() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.hs.awaitProcess(p.cfg.WaitTimeout); err != nil {
			return err
		}
		p.q.shuffleCompleted()
		if err := p.admit(ctx); err != nil {
			return err
		}
		p.hs.finishProcess()

		if err := p.writeCompleted(); err != nil {
			return err
		}
	}
	p.prog.finish()
	return p.sink.Flush()
}

func (p *Pipeline) admit(ctx context.Context) error {
	return p.q.admit(p.cfg.ParallelMax, func(u *Unit) error {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		return p.fx.Submit(u)
	})
}

func (p *Pipeline) writeCompleted() error {
	for {
		u, ok := p.q.popCompleted()
		if !ok {
			return nil
		}
		n, err := p.writeUnit(u)
		if err != nil {
			return fmt.Errorf("range %s: %w", u.Range(), err)
		}
		if p.metrics != nil {
			p.metrics.RecordRange(n)
		}
		p.prog.add(len(u.Body))
	}
}

// writeUnit converts one payload: split into lines, drop empties,
// prepend the range prefix the wire format omits, strip the trailing
// carriage return, hand each full digest line to the sink. The line
// buffer is reused, so sinks must not retain it.
func (p *Pipeline) writeUnit(u *Unit) (int64, error) {
	prefix := u.Range()
	var written int64
	body := u.Body
	for len(body) > 0 {
		line := body
		if i := bytes.IndexByte(body, '\n'); i >= 0 {
			line, body = body[:i], body[i+1:]
		} else {
			body = nil
		}
		line = bytes.TrimRight(line, "\r")
		if len(line) == 0 {
			continue
		}
		p.lineBuf = append(p.lineBuf[:0], prefix...)
		p.lineBuf = append(p.lineBuf, line...)
		if err := p.sink.WriteLine(p.lineBuf); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// finish inspects both goroutines' faults in a fixed order, logs each,
// and on any fault runs the abort sequence: release every still-queued
// transfer exactly once, drop the queues, close the engine, and wrap
// both faults for the caller.
func (p *Pipeline) finish(fetchErr, coordErr error) error {
	if fetchErr != nil {
		p.log.Error("goroutine failed", zap.String("goroutine", "fetch"), zap.Error(fetchErr))
	}
	if coordErr != nil {
		p.log.Error("goroutine failed", zap.String("goroutine", "coordinate"), zap.Error(coordErr))
	}

	if fetchErr != nil || coordErr != nil {
		for _, u := range p.q.inflight {
			if err := p.fx.Remove(u); err != nil {
				p.log.Error("release transfer", zap.String("range", u.Range()), zap.Error(err))
			}
		}
		p.q.drain()
		p.fx.Close()
		return &AggregateError{Fetch: fetchErr, Coordinate: coordErr}
	}

	if err := p.fx.Close(); err != nil {
		return err
	}
	p.log.Info("download complete",
		zap.Int64("ranges", p.prog.files),
		zap.Int64("bytes", p.prog.bytes),
		zap.Duration("elapsed", time.Since(p.prog.start)))
	return nil
}

// Stats reports ranges written out and payload bytes processed.
func (p *Pipeline) Stats() (ranges, bytes int64) {
	return p.prog.files, p.prog.bytes
}

// LatencySummary describes the distribution of per-transfer durations.
type LatencySummary struct {
	Count int
	Mean  float64
	P50   float64
	P95   float64
	Max   float64
}

// LatencySummary summarizes transfer latencies once Run has returned.
// ok is false when the engine records none or no transfer finished.
func (p *Pipeline) LatencySummary() (s LatencySummary, ok bool) {
	lf, ok := p.fx.(interface{ Latencies() []float64 })
	if !ok {
		return s, false
	}
	lat := lf.Latencies()
	if len(lat) == 0 {
		return s, false
	}
	sorted := append([]float64(nil), lat...)
	sort.Float64s(sorted)
	return LatencySummary{
		Count: len(sorted),
		Mean:  stat.Mean(sorted, nil),
		P50:   stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P95:   stat.Quantile(0.95, stat.Empirical, sorted, nil),
		Max:   sorted[len(sorted)-1],
	}, true
}
