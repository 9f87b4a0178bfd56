package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/okian/clickrace/internal/adapters/ipc"
	"github.com/okian/clickrace/internal/adapters/mq/queue"
	"github.com/okian/clickrace/internal/adapters/mq/writer"
	"github.com/okian/clickrace/internal/adapters/repository"
	"github.com/okian/clickrace/internal/adapters/tcp/ingress"
	service "github.com/okian/clickrace/internal/app"
	"github.com/okian/clickrace/internal/config"
	"github.com/okian/clickrace/internal/domain/game"
	"github.com/okian/clickrace/internal/supervisor"
	"github.com/okian/clickrace/pkg/logger"
	"github.com/okian/clickrace/pkg/metrics"
)

// clickPlane is everything that decides and persists clicks in one process.
type clickPlane struct {
	runtime *service.Runtime
	ingress *ingress.Server
	queue   *queue.InMemoryQueue
	pool    *writer.Pool
}

// startClickPlane builds the game, the write pipeline and the runtime, adopts
// the open round and binds the click port.
func startClickPlane(ctx context.Context, cfg *config.Config, store *repository.SQLStore, workerID int) (*clickPlane, error) {
	p := &clickPlane{
		queue: queue.NewInMemoryQueue(queue.WithCapacity(cfg.WriteQueueSize)),
	}
	p.pool = writer.NewPool(cfg.WriterCount, p.queue, store)
	p.pool.Start(ctx)

	p.runtime = service.NewRuntime(game.New(game.WithEventDuration(cfg.EventDuration())), store, p.pool,
		service.WithWorkerID(workerID),
		service.WithPID(os.Getpid()),
		service.WithHeartbeatInterval(cfg.HeartbeatInterval()),
		service.WithConnectionCount(func() int { return p.ingress.Connections() }),
		service.WithQueueDepth(func() int { return p.queue.Len(ctx) }),
	)
	p.ingress = ingress.NewServer(cfg.TCPAddr, p.runtime, ingress.WithIdleTimeout(cfg.TCPIdleTimeout()))

	if err := p.runtime.Boot(ctx); err != nil {
		p.shutdown(context.WithoutCancel(ctx))
		return nil, err
	}
	if err := p.ingress.Listen(ctx); err != nil {
		p.shutdown(context.WithoutCancel(ctx))
		return nil, err
	}
	return p, nil
}

// serve accepts clicks until ctx ends.
func (p *clickPlane) serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = p.ingress.Close()
	}()
	if err := p.ingress.Serve(ctx); err != nil && !errors.Is(err, ingress.ErrServerClosed) {
		return err
	}
	return nil
}

// shutdown drains the write pipeline. The ingress must be closed first.
func (p *clickPlane) shutdown(ctx context.Context) {
	if err := p.pool.Shutdown(ctx); err != nil {
		logger.Get().Error(ctx, "write pipeline did not drain", logger.Error(err))
	}
}

// metricsEndpoint exposes this process's metrics registry. Workers record
// click, store, queue and ingress metrics that only they can serve.
type metricsEndpoint struct {
	srv *http.Server
	ln  net.Listener
}

func listenMetrics(ctx context.Context, addr string) (*metricsEndpoint, error) {
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen on %s: %w", addr, err)
	}
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	m := &metricsEndpoint{
		srv: &http.Server{Handler: r, ReadHeaderTimeout: readHeaderTimeout},
		ln:  ln,
	}
	go func() {
		if err := m.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Get().Error(ctx, "metrics endpoint stopped", logger.Error(err))
		}
	}()
	return m, nil
}

func (m *metricsEndpoint) addr() string {
	return m.ln.Addr().String()
}

func (m *metricsEndpoint) shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}

// runWorker is the child process started by the supervisor. It exits when
// signalled or when the supervisor closes the control pipe.
func runWorker(ctx context.Context) error {
	ch, err := supervisor.OpenChannel()
	if err != nil {
		return err
	}
	defer ch.Reports.Close()

	cfg, err := bootstrap(ctx, logger.Int("worker_id", ch.WorkerID))
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

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	plane, err := startClickPlane(ctx, cfg, store, ch.WorkerID)
	if err != nil {
		return fmt.Errorf("worker %d: %w", ch.WorkerID, err)
	}

	if addr, err := cfg.WorkerMetricsAddress(ch.WorkerID); err == nil && addr != "" {
		ep, err := listenMetrics(ctx, addr)
		if err != nil {
			log.Error(ctx, "worker metrics unavailable", logger.Error(err))
		} else {
			log.Info(ctx, "serving worker metrics", logger.String("addr", ep.addr()))
			defer func() { _ = ep.shutdown(context.WithoutCancel(ctx)) }()
		}
	}

	reports := ipc.NewEncoder(ch.Reports)
	control := ipc.NewDecoder(ch.Control)

	go func() {
		defer cancel()
		if err := plane.runtime.RunHeartbeats(ctx, reports); err != nil {
			log.Error(ctx, "heartbeats stopped", logger.Error(err))
		}
	}()
	go func() {
		defer cancel()
		if err := plane.runtime.ServeControl(ctx, control, reports); err != nil {
			log.Error(ctx, "control channel failed", logger.Error(err))
		}
	}()

	log.Info(ctx, "worker started", logger.Int("pid", os.Getpid()), logger.String("tcp_addr", cfg.TCPAddr))
	serveErr := plane.serve(ctx)
	cancel()

	plane.shutdown(context.WithoutCancel(ctx))
	log.Info(ctx, "worker stopped")
	return serveErr
}
