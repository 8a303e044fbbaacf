package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/charlievieth/fastwalk"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/hibp/internal/config"
	"github.com/GriffinCanCode/hibp/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/hibp/internal/logging"
	"github.com/GriffinCanCode/hibp/internal/server"
)

const shutdownGrace = 10 * time.Second

func main() {
	defaults := config.Default()
	var (
		configPath = flag.String("config", "", "config file (.yaml, .yml or .toml)")
		sha1DB     = flag.String("sha1-db", "", "SHA-1 database, serves /range and /check/sha1|plain")
		ntlmDB     = flag.String("ntlm-db", "", "NTLM database, serves /range?mode=ntlm and /check/ntlm")
		dbDir      = flag.String("db-dir", "", "directory to search for *.sha1.bin and *.ntlm.bin databases")
		host       = flag.String("host", defaults.Server.Host, "bind address")
		port       = flag.String("port", defaults.Server.Port, "listen port")
		jsonOut    = flag.Bool("json", false, "answer /check requests with JSON instead of a bare count")
		perfTest   = flag.Bool("perf-test", false, "salt /check/plain probes so every request misses the cache")
		debug      = flag.Bool("debug", false, "development logging")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Server.Host = *host
		case "port":
			cfg.Server.Port = *port
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

	scfg := server.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		SHA1DB:      *sha1DB,
		NTLMDB:      *ntlmDB,
		CacheSize:   cfg.Server.CacheSize,
		JSON:        *jsonOut,
		PerfTest:    *perfTest,
		CORS:        cfg.Server.CORS,
		RatePerSec:  cfg.Server.RatePerSec,
		RateBurst:   cfg.Server.RateBurst,
		Development: cfg.Logging.Development,
	}
	if *dbDir != "" {
		if err := discoverDBs(*dbDir, &scfg); err != nil {
			log.Fatal("database discovery failed", zap.String("dir", *dbDir), zap.Error(err))
		}
	}

	srv, err := server.New(scfg, log, monitoring.NewServerMetrics())
	if err != nil {
		log.Fatal("server startup failed", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		log.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("shutdown", zap.Error(err))
		}
	case err := <-errChan:
		log.Fatal("server error", zap.Error(err))
	}
}

// discoverDBs fills the database paths the flags left empty with
// *.sha1.bin and *.ntlm.bin files found under dir. More than one
// candidate per corpus is ambiguous and refused.
func discoverDBs(dir string, scfg *server.Config) error {
	var (
		mu    sync.Mutex
		sha1s []string
		ntlms []string
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		name := filepath.Base(p)
		mu.Lock()
		defer mu.Unlock()
		if ok, _ := filepath.Match("*.sha1.bin", name); ok {
			sha1s = append(sha1s, p)
		}
		if ok, _ := filepath.Match("*.ntlm.bin", name); ok {
			ntlms = append(ntlms, p)
		}
		return nil
	})
	if err != nil {
		return err
	}
	sort.Strings(sha1s)
	sort.Strings(ntlms)

	if scfg.SHA1DB == "" {
		if len(sha1s) > 1 {
			return fmt.Errorf("found %d SHA-1 databases, pass -sha1-db to pick one: %v", len(sha1s), sha1s)
		}
		if len(sha1s) == 1 {
			scfg.SHA1DB = sha1s[0]
		}
	}
	if scfg.NTLMDB == "" {
		if len(ntlms) > 1 {
			return fmt.Errorf("found %d NTLM databases, pass -ntlm-db to pick one: %v", len(ntlms), ntlms)
		}
		if len(ntlms) == 1 {
			scfg.NTLMDB = ntlms[0]
		}
	}
	return nil
}
