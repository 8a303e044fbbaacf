package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/hibp/internal/api/middleware"
	"github.com/GriffinCanCode/hibp/internal/infrastructure/monitoring"
)

// Config contains server configuration.
type Config struct {
	Host string
	Port string

	// Database paths; at least one corpus is required.
	SHA1DB string
	NTLMDB string

	CacheSize int

	// JSON switches /check answers from a bare count to a JSON object.
	JSON bool
	// PerfTest salts every plaintext probe so benchmarks measure the
	// lookup path instead of the cache.
	PerfTest bool

	CORS       bool
	RatePerSec int
	RateBurst  int

	Development bool
}

// Server wraps the HTTP server and the corpora it answers from.
type Server struct {
	cfg     Config
	router  *gin.Engine
	httpSrv *http.Server
	stores  *Stores
	log     *zap.Logger
	metrics *monitoring.ServerMetrics
}

// New opens the configured databases and assembles the router. Every
// database is mapped before the listener starts, so a bad path fails
// the process instead of the first query.
func New(cfg Config, log *zap.Logger, metrics *monitoring.ServerMetrics) (*Server, error) {
	stores, err := OpenStores(cfg.SHA1DB, cfg.NTLMDB)
	if err != nil {
		return nil, err
	}
	if stores.SHA1 != nil {
		log.Info("sha1 corpus loaded",
			zap.String("path", cfg.SHA1DB),
			zap.Int64("records", stores.SHA1.Len()),
		)
	}
	if stores.NTLM != nil {
		log.Info("ntlm corpus loaded",
			zap.String("path", cfg.NTLMDB),
			zap.Int64("records", stores.NTLM.Len()),
		)
	}

	cache, err := NewCache(cfg.CacheSize, metrics)
	if err != nil {
		stores.Close()
		return nil, err
	}

	if !cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log.Named("http")))
	if metrics != nil {
		router.Use(monitoring.Middleware(metrics))
	}
	if cfg.CORS {
		router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	}
	if cfg.RatePerSec > 0 {
		rl := middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RatePerSec,
			Burst:             cfg.RateBurst,
		}
		if rl.Burst <= 0 {
			rl.Burst = 2 * rl.RequestsPerSecond
		}
		log.Info("rate limiting enabled",
			zap.Int("rps", rl.RequestsPerSecond),
			zap.Int("burst", rl.Burst),
		)
		router.Use(middleware.RateLimit(rl))
	}

	handlers := NewHandlers(stores, cache, log, metrics, cfg.JSON, cfg.PerfTest)
	handlers.publishDBSizes()

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/range/:prefix", handlers.Range)
	router.GET("/check/sha1/:hash", handlers.CheckSHA1)
	router.GET("/check/ntlm/:hash", handlers.CheckNTLM)
	router.GET("/check/plain/:password", handlers.CheckPlain)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := net.JoinHostPort(cfg.Host, cfg.Port)
	return &Server{
		cfg:    cfg,
		router: router,
		httpSrv: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		stores:  stores,
		log:     log,
		metrics: metrics,
	}, nil
}

// Router exposes the assembled handler for tests.
func (s *Server) Router() http.Handler { return s.router }

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.log.Info("starting HTTP server", zap.String("addr", s.httpSrv.Addr))
	if err := s.httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then unmaps the databases.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down server")
	err := s.httpSrv.Shutdown(ctx)
	if cerr := s.stores.Close(); err == nil {
		err = cerr
	}
	return err
}
