package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/hibp/internal/config"
	"github.com/GriffinCanCode/hibp/internal/download"
	"github.com/GriffinCanCode/hibp/internal/flatfile"
	"github.com/GriffinCanCode/hibp/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/hibp/internal/logging"
	"github.com/GriffinCanCode/hibp/internal/record"
)

type options struct {
	output     string
	txtOut     bool
	ntlm       bool
	resume     bool
	force      bool
	limit      uint32
	noProgress bool
}

func main() {
	defaults := config.Default()
	var (
		configPath  = flag.String("config", "", "config file (.yaml, .yml or .toml)")
		output      = flag.String("o", "", "output file (default hibp_all.<corpus>.bin, .txt with -txt-out)")
		txtOut      = flag.Bool("txt-out", false, "write text lines instead of binary records")
		ntlm        = flag.Bool("ntlm", false, "mirror the NTLM corpus instead of SHA-1")
		resume      = flag.Bool("resume", false, "continue an interrupted binary mirror")
		force       = flag.Bool("force", false, "overwrite an existing output file")
		limit       = flag.Uint("limit", record.PrefixCount, "exclusive upper bound on range prefixes, for testing")
		parallel    = flag.Int("parallel", defaults.Download.Parallel, "maximum in-flight range transfers (1-512)")
		ratePerSec  = flag.Float64("rate", defaults.Download.RatePerSec, "cap on range requests per second, 0 for unlimited")
		noProgress  = flag.Bool("no-progress", false, "suppress the progress line")
		metricsAddr = flag.String("metrics-addr", "", "serve Prometheus metrics on this address while downloading")
		debug       = flag.Bool("debug", false, "development logging")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	// Flags beat the config file and environment, but only when given.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "parallel":
			cfg.Download.Parallel = *parallel
		case "rate":
			cfg.Download.RatePerSec = *ratePerSec
		}
	})
	if *debug {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	log, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer log.Sync()

	opt := options{
		output:     *output,
		txtOut:     *txtOut,
		ntlm:       *ntlm,
		resume:     *resume,
		force:      *force,
		noProgress: *noProgress,
	}
	if *limit > record.PrefixCount {
		log.Fatal("limit exceeds the range address space",
			zap.Uint("limit", *limit), zap.Int("max", record.PrefixCount))
	}
	opt.limit = uint32(*limit)
	if opt.output == "" {
		opt.output = defaultOutput(opt.ntlm, opt.txtOut)
	}
	if opt.resume && opt.txtOut {
		log.Fatal("resume works on binary databases only; text mirrors restart from scratch")
	}
	if cfg.Download.Parallel < 1 {
		cfg.Download.Parallel = 1
	}
	if cfg.Download.Parallel > 512 {
		log.Warn("parallel clamped", zap.Int("requested", cfg.Download.Parallel), zap.Int("max", 512))
		cfg.Download.Parallel = 512
	}

	var metrics *monitoring.DownloadMetrics
	if *metricsAddr != "" {
		metrics = monitoring.NewDownloadMetrics()
		go serveMetrics(*metricsAddr, log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opt.ntlm {
		err = mirror[record.NTLM](ctx, record.NTLMCodec{}, cfg, opt, log, metrics)
	} else {
		err = mirror[record.SHA1](ctx, record.SHA1Codec{}, cfg, opt, log, metrics)
	}
	if err != nil {
		if errors.Is(err, download.ErrNothingToResume) {
			log.Info("database already complete", zap.String("db", opt.output))
			return
		}
		var agg *download.AggregateError
		if errors.As(err, &agg) {
			// Both goroutine faults were already logged by the pipeline.
			fmt.Fprintln(os.Stderr, agg)
		} else {
			log.Error("download failed", zap.Error(err))
		}
		os.Exit(1)
	}
}

// mirror runs one download into a text or binary sink for a corpus
// type. The sink is closed here even when the run fails, so a partial
// database lands on disk for a later resume.
func mirror[R any](ctx context.Context, codec record.Codec[R], cfg *config.Config, opt options, log *zap.Logger, metrics *monitoring.DownloadMetrics) error {
	pcfg := download.Config{
		PrefixLimit: opt.limit,
		ParallelMax: cfg.Download.Parallel,
		WaitTimeout: cfg.Download.WaitTimeout,
		Progress:    !opt.noProgress,
		RatePerSec:  cfg.Download.RatePerSec,
	}
	fcfg := download.FetcherConfig{
		BaseURL:   cfg.Download.BaseURL,
		UserAgent: cfg.Download.UserAgent,
		NTLM:      opt.ntlm,
		Retries:   cfg.Download.Retries,
	}

	sink, start, err := openSink(codec, opt, log)
	if err != nil {
		return err
	}
	pcfg.StartPrefix = start

	p := download.New(pcfg, fcfg, sink, log, metrics)
	runErr := p.Run(ctx)
	if cerr := sink.Close(); cerr != nil {
		if runErr == nil {
			return cerr
		}
		log.Warn("closing output after failed run", zap.Error(cerr))
	}
	if runErr != nil {
		return runErr
	}

	if sum, ok := p.LatencySummary(); ok {
		log.Info("transfer latency",
			zap.Int("transfers", sum.Count),
			zap.Duration("mean", secs(sum.Mean)),
			zap.Duration("p50", secs(sum.P50)),
			zap.Duration("p95", secs(sum.P95)),
			zap.Duration("max", secs(sum.Max)))
	}
	return nil
}

// openSink prepares the output file per the restart/resume/force rules
// and returns the sink plus the first range to fetch.
func openSink[R any](codec record.Codec[R], opt options, log *zap.Logger) (download.Sink, uint32, error) {
	if opt.txtOut {
		if err := refuseExisting(opt.output, opt.force); err != nil {
			return nil, 0, err
		}
		f, err := os.Create(opt.output)
		if err != nil {
			return nil, 0, err
		}
		return download.NewTextSink(f), 0, nil
	}

	if opt.resume {
		res, err := download.ResumePoint[R](codec, opt.output)
		if err != nil {
			return nil, 0, fmt.Errorf("resume %s: %w", opt.output, err)
		}
		if err := res.Validate(opt.limit); err != nil {
			return nil, 0, err
		}
		w, existing, err := flatfile.Append[R](codec, opt.output)
		if err != nil {
			return nil, 0, err
		}
		if err := w.Truncate(res.Keep); err != nil {
			w.Close()
			return nil, 0, err
		}
		log.Info("resuming download",
			zap.String("db", opt.output),
			zap.Int64("records_kept", res.Keep),
			zap.Int64("records_on_disk", existing),
			zap.String("from", record.PrefixHex(res.NextPrefix)))
		return download.NewRecordSink[R](codec, w), res.NextPrefix, nil
	}

	if err := refuseExisting(opt.output, opt.force); err != nil {
		return nil, 0, err
	}
	w, err := flatfile.Create[R](codec, opt.output)
	if err != nil {
		return nil, 0, err
	}
	return download.NewRecordSink[R](codec, w), 0, nil
}

func refuseExisting(path string, force bool) error {
	if force {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s exists; pass -force to overwrite it or -resume to continue it", path)
	}
	return nil
}

func defaultOutput(ntlm, txtOut bool) string {
	corpus := "sha1"
	if ntlm {
		corpus = "ntlm"
	}
	ext := ".bin"
	if txtOut {
		ext = ".txt"
	}
	return "hibp_all." + corpus + ext
}

func serveMetrics(addr string, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	log.Info("metrics listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.Warn("metrics server stopped", zap.Error(err))
	}
}

func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
