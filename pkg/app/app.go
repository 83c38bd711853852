// Package app wires the backend, the bucket index manager, the refresh
// scheduler and the status HTTP server into one daemon.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/sgaunet/aspectidx/pkg/assigner"
	"github.com/sgaunet/aspectidx/pkg/backend"
	"github.com/sgaunet/aspectidx/pkg/bucketer"
	"github.com/sgaunet/aspectidx/pkg/cachestore"
	"github.com/sgaunet/aspectidx/pkg/config"
	"github.com/sgaunet/aspectidx/pkg/distributed"
	"github.com/sgaunet/aspectidx/pkg/health"
	"github.com/sgaunet/aspectidx/pkg/ledger"
	"github.com/sgaunet/aspectidx/pkg/scheduler"
)

// App is the bucket index daemon.
type App struct {
	cfg         config.Config
	awsS3Client *s3.Client
	backend     backend.Backend
	store       *cachestore.Store
	manager     *bucketer.Manager
	scheduler   *scheduler.Scheduler
	healthMon   *health.BackendHealth
	router      *mux.Router
	srv         *http.Server
	log         *slog.Logger

	mu          sync.Mutex
	lastRefresh time.Time
}

// NewApp creates the daemon: backend selection, cache hydration and route
// setup. Nothing runs until Start is called.
// By default the logger is set to discard.
func NewApp(ctx context.Context, cfg config.Config) (*App, error) {
	s := &App{
		cfg:    cfg,
		router: mux.NewRouter().StrictSlash(true),
		srv:    &http.Server{},
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	if err := s.initBackend(ctx); err != nil {
		return nil, err
	}

	s.store = cachestore.NewStore(s.backend, cfg.CacheKey)

	group, err := s.initGroup()
	if err != nil {
		return nil, err
	}

	s.manager = bucketer.NewManager(ctx, s.backend, s.store,
		assigner.NewImageAssigner(), group, s.initLedger(), bucketer.Options{
			Root:                cfg.Prefix,
			BatchSize:           cfg.BatchSize,
			Workers:             cfg.Workers,
			ApplyDatasetPadding: cfg.ApplyDatasetPadding,
		})
	s.scheduler = scheduler.NewScheduler(cfg, s.manager)

	s.initRouter()
	return s, nil
}

// SetLogger sets the logger and propagates it to every service.
func (s *App) SetLogger(log *slog.Logger) {
	s.log = log
	if lb, ok := s.backend.(interface{ SetLogger(*slog.Logger) }); ok {
		lb.SetLogger(log)
	}
	s.store.SetLogger(log)
	s.manager.SetLogger(log)
	s.scheduler.SetLogger(log)
}

// Manager exposes the bucket index manager to the driving process.
func (s *App) Manager() *bucketer.Manager {
	return s.manager
}

// Start launches the status HTTP server, the health monitor and the
// background refresh scheduler.
func (s *App) Start(ctx context.Context) error {
	s.healthMon = health.NewBackendHealth(s.backend, s.cfg.CacheKey, s.log)
	s.healthMon.Start(ctx)

	if err := s.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("Start: failed to start scheduler: %w", err)
	}

	go s.startWebServer()
	return nil
}

func (s *App) startWebServer() {
	s.srv.Addr = s.cfg.StatusAddr
	s.log.Info("listen", slog.String("addr", s.cfg.StatusAddr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.log.Error("status server stopped", slog.String("error", err.Error()))
	}
}

// StopServer shuts the daemon down.
func (s *App) StopServer() {
	s.scheduler.Stop()
	if s.healthMon != nil {
		s.healthMon.Stop()
	}
	if err := s.srv.Shutdown(context.Background()); err != nil {
		s.log.Error("error shutting down status server", slog.String("error", err.Error()))
	}
}

// Router returns the HTTP handler, mainly for tests.
func (s *App) Router() http.Handler {
	return s.router
}

// initBackend selects the filesystem backend when datadir is set, the S3
// backend otherwise.
func (s *App) initBackend(_ context.Context) error {
	if s.cfg.DataDir != "" {
		fsBackend, err := backend.NewFilesystemBackend(s.cfg.DataDir)
		if err != nil {
			return fmt.Errorf("initBackend: %w", err)
		}
		s.backend = fsBackend
		return nil
	}

	awsCfg, err := s.GetAwsConfig()
	if err != nil {
		return fmt.Errorf("initBackend: %w", err)
	}
	s.awsS3Client = s3.NewFromConfig(awsCfg)
	s.backend = backend.NewS3Backend(s.awsS3Client, s.cfg.Bucket)
	return nil
}

// initGroup takes the configured rank/world-size when set, the launcher
// environment otherwise.
func (s *App) initGroup() (*distributed.Group, error) {
	if s.cfg.WorldSize > 0 {
		return distributed.NewGroup(s.cfg.Rank, s.cfg.WorldSize)
	}
	return distributed.GroupFromEnv()
}

// initLedger selects the redis ledger when an address is configured, the
// in-memory ledger otherwise.
func (s *App) initLedger() ledger.Ledger {
	if s.cfg.RedisAddr == "" {
		return ledger.NewMemoryLedger()
	}
	client := redis.NewClient(&redis.Options{
		Addr: s.cfg.RedisAddr,
		DB:   s.cfg.RedisDB,
	})
	return ledger.NewRedisLedger(client, "")
}
