package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/studydash/studydash/internal/api"
	"github.com/studydash/studydash/internal/app/engagement"
	"github.com/studydash/studydash/internal/health"
	"github.com/studydash/studydash/internal/infra/cache"
	"github.com/studydash/studydash/internal/infra/store"
	"github.com/studydash/studydash/internal/logging"
)

// Daemon is the core studydash runtime. It wires together all services.
type Daemon struct {
	Config Config
	Log    *zap.Logger
	DB     *store.DB
	Cache  cache.Cache
	Engine *engagement.Engine
	Server *api.Server
	Health *health.Checker
	cancel context.CancelFunc
}

// New creates and initializes a Daemon from the config file.
func New(ctx context.Context) (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return NewWithConfig(ctx, cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(ctx context.Context, cfg Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = store.DriverSQLite
	}
	if cfg.Storage.Driver == store.DriverSQLite && cfg.Storage.Dir == "" {
		cfg.Storage.Dir = studydashHome()
	}
	db, err := store.Open(ctx, cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	c, err := cache.New(cfg.Cache, log)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open cache: %w", err)
	}

	opts := []engagement.Option{
		engagement.WithLogger(log),
		engagement.WithCache(c, cfg.Cache.LeaderboardTTL),
		engagement.WithMaxClaimPasses(cfg.Engagement.MaxClaimPasses),
	}
	if path := cfg.Engagement.AchievementsFile; path != "" {
		defs, err := engagement.LoadAchievements(path)
		if err != nil {
			c.Close()
			db.Close()
			return nil, fmt.Errorf("load achievements: %w", err)
		}
		opts = append(opts, engagement.WithAchievements(defs))
	}
	eng := engagement.New(db, opts...)

	checker := health.NewChecker(db, c, log)

	srv := api.NewServer(eng,
		api.WithLogger(log),
		api.WithHealth(checker),
		api.WithCORSOrigins(cfg.Server.CORSOrigins),
		api.WithRequestTimeout(cfg.Server.RequestTimeout),
	)
	// Enable Prometheus /metrics if configured
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}

	return &Daemon{
		Config: cfg,
		Log:    log,
		DB:     db,
		Cache:  c,
		Engine: eng,
		Server: srv,
		Health: checker,
	}, nil
}

// Addr is the host:port the server listens on.
func (d *Daemon) Addr() string {
	return net.JoinHostPort(d.Config.Server.Host, strconv.Itoa(d.Config.Server.Port))
}

// Serve starts the HTTP server and blocks until ctx is done or SIGINT/SIGTERM arrives.
// The health loop, listener and shutdown run in one errgroup, so a listener
// failure also stops the health loop.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	defer cancel()

	addr := d.Addr()
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)

	// Health checker (always runs)
	g.Go(func() error {
		d.Health.Run(gctx)
		return nil
	})

	g.Go(func() error {
		d.Log.Info("serving",
			zap.String("addr", "http://"+addr),
			zap.String("storage", d.DB.Driver()),
			zap.Bool("metrics", d.Config.Telemetry.Prometheus))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		d.Log.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Cache != nil {
		_ = d.Cache.Close()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
	if d.Log != nil {
		_ = d.Log.Sync()
	}
}
