package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/okian/clickrace/internal/adapters/http/api"
	"github.com/okian/clickrace/internal/adapters/repository"
	service "github.com/okian/clickrace/internal/app"
	"github.com/okian/clickrace/internal/config"
	"github.com/okian/clickrace/internal/supervisor"
	"github.com/okian/clickrace/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

// workerCommand selects the worker role when passed as the first argument.
const workerCommand = "worker"

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	if len(os.Args) > 1 && os.Args[1] == workerCommand {
		err = runWorker(ctx)
	} else {
		err = runPrimary(ctx)
	}
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

// bootstrap loads .env and configuration and initializes logging.
func bootstrap(ctx context.Context, fields ...logger.Field) (*config.Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}

	if err := logger.InitWith(logger.Options{Format: cfg.LogFormat, Fields: fields}); err != nil {
		return nil, err
	}
	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (*repository.SQLStore, error) {
	return repository.Open(cfg.DBDriver, cfg.DBDSN)
}

// runPrimary serves the control API and either supervises the worker fleet
// or, with use_cluster off, handles clicks in this process.
func runPrimary(ctx context.Context) error {
	cfg, err := bootstrap(ctx, logger.String("role", "primary"))
	if err != nil {
		return err
	}
	log := logger.Get()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "closing store failed", logger.Error(err))
		}
	}()

	// Migrate is idempotent; the API may be queried before the fleet is up.
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	var (
		bc       service.Broadcaster
		fleetErr = make(chan error, 1)
		finish   = func(context.Context) {}
	)
	if cfg.UseCluster {
		launcher, err := supervisor.SelfLauncher()
		if err != nil {
			return err
		}
		sup := supervisor.New(launcher, store,
			supervisor.WithWorkers(cfg.WorkerCount),
			supervisor.WithRestartBackoff(cfg.RestartBackoff()),
		)
		go func() { fleetErr <- sup.Run(runCtx) }()
		finish = func(context.Context) {
			if n := sup.Live(); n > 0 {
				log.Warn(ctx, "workers still running after fleet shutdown", logger.Int("workers", n))
			}
		}
		bc = sup
	} else {
		plane, err := startClickPlane(runCtx, cfg, store, 0)
		if err != nil {
			return err
		}
		go func() { fleetErr <- plane.serve(runCtx) }()
		finish = plane.shutdown
		bc = plane.runtime
	}

	ctrl := service.NewController(store, bc,
		service.WithLeaderboardLimits(cfg.LeaderboardLimit, cfg.MaxLeaderboardLimit),
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewServer(ctrl).Router(ctx),
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	httpErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.HTTPAddr), logger.Bool("cluster", cfg.UseCluster))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	// Wait for shutdown signal or a fatal error from either side.
	var (
		runErr    error
		fleetDone bool
	)
	select {
	case <-ctx.Done():
	case runErr = <-httpErr:
	case runErr = <-fleetErr:
		fleetDone = true
	}
	log.Info(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	cancelRun()
	if !fleetDone {
		if err := <-fleetErr; err != nil && runErr == nil {
			runErr = err
		}
	}
	finish(shutdownCtx)
	log.Info(ctx, "stopped")
	return runErr
}
