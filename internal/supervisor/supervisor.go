// Package supervisor runs the worker fleet: it spawns one process per slot,
// respawns any that exit, ingests their heartbeats and broadcasts round
// transitions to all of them.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/clickrace/internal/adapters/ipc"
	"github.com/okian/clickrace/internal/domain/model"
	"github.com/okian/clickrace/pkg/logger"
	"github.com/okian/clickrace/pkg/metrics"
)

// Default supervisor configuration constants.
const (
	defaultWorkerCount = 1
	launchRetryDelay   = time.Second
	shutdownTimeout    = 10 * time.Second
)

// Store is the slice of the aggregation store the supervisor writes.
type Store interface {
	Migrate(ctx context.Context) error
	UpsertHeartbeat(ctx context.Context, workerID, pid int, now int64) error
	MarkWorkerExited(ctx context.Context, workerID int) error
}

type slot struct {
	id       int
	proc     Process
	enc      *ipc.Encoder
	lastBeat int64
}

// Supervisor keeps a fixed number of workers alive.
type Supervisor struct {
	launcher Launcher
	store    Store
	clock    clockwork.Clock

	workers  int
	backoff  time.Duration
	onWinner func(workerID int, msg ipc.Message)

	mu      sync.Mutex
	slots   map[int]*slot
	stopped bool

	wg     sync.WaitGroup
	logger logger.Logger
}

// New creates a supervisor.
func New(launcher Launcher, store Store, opts ...Option) *Supervisor {
	s := &Supervisor{
		launcher: launcher,
		store:    store,
		clock:    clockwork.NewRealClock(),
		workers:  defaultWorkerCount,
		slots:    make(map[int]*slot),
		logger:   logger.Get().Named("supervisor"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run migrates the schema, starts every worker and keeps them alive until
// ctx ends. It then stops the fleet and waits for it.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	for id := 0; id < s.workers; id++ {
		if err := s.spawn(ctx, id); err != nil {
			s.shutdown(context.WithoutCancel(ctx))
			return err
		}
	}
	s.logger.Info(ctx, "fleet started", logger.Int("workers", s.workers))

	<-ctx.Done()
	s.shutdown(context.WithoutCancel(ctx))
	return nil
}

// Live returns the number of running workers.
func (s *Supervisor) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

// LastHeartbeat returns the time of the last heartbeat from a running slot.
func (s *Supervisor) LastHeartbeat(workerID int) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[workerID]
	if !ok || sl.lastBeat == 0 {
		return 0, false
	}
	return sl.lastBeat, true
}

func (s *Supervisor) spawn(ctx context.Context, id int) error {
	proc, err := s.launcher.Launch(ctx, id)
	if err != nil {
		return err
	}
	sl := &slot{id: id, proc: proc, enc: ipc.NewEncoder(proc.Control())}

	s.mu.Lock()
	s.slots[id] = sl
	live := len(s.slots)
	stopped := s.stopped
	s.wg.Add(2)
	s.mu.Unlock()
	metrics.UpdateWorkersLive(live)

	s.logger.Info(ctx, "worker started", logger.Int("worker", id), logger.Int("pid", proc.PID()))

	go s.readReports(ctx, sl)
	go s.watch(ctx, sl)
	if stopped {
		// Launched while the fleet was shutting down.
		_ = proc.Signal(syscall.SIGTERM)
	}
	return nil
}

// watch waits for the worker to exit and starts its replacement.
func (s *Supervisor) watch(ctx context.Context, sl *slot) {
	defer s.wg.Done()

	err := sl.proc.Wait()
	_ = sl.proc.Control().Close()

	s.mu.Lock()
	if s.slots[sl.id] == sl {
		delete(s.slots, sl.id)
	}
	live := len(s.slots)
	stopped := s.stopped
	s.mu.Unlock()
	metrics.UpdateWorkersLive(live)

	fields := []logger.Field{logger.Int("worker", sl.id), logger.Int("pid", sl.proc.PID())}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if markErr := s.store.MarkWorkerExited(context.WithoutCancel(ctx), sl.id); markErr != nil {
		s.logger.Error(ctx, "failed to record worker exit", logger.Int("worker", sl.id), logger.Error(markErr))
	}
	if stopped || ctx.Err() != nil {
		s.logger.Info(ctx, "worker stopped", fields...)
		return
	}
	s.logger.Warn(ctx, "worker exited, respawning", fields...)
	metrics.RecordWorkerRestart(sl.id)

	delay := s.backoff
	for {
		if delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-s.clock.After(delay):
			}
		}
		if s.isStopped() {
			return
		}
		err := s.spawn(ctx, sl.id)
		if err == nil {
			return
		}
		s.logger.Error(ctx, "respawn failed", logger.Int("worker", sl.id), logger.Error(err))
		delay = max(s.backoff, launchRetryDelay)
	}
}

func (s *Supervisor) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// readReports ingests heartbeats and local winners until the worker closes its end.
func (s *Supervisor) readReports(ctx context.Context, sl *slot) {
	defer s.wg.Done()
	defer func() { _ = sl.proc.Reports().Close() }()

	dec := ipc.NewDecoder(sl.proc.Reports())
	for {
		msg, err := dec.Receive()
		switch {
		case errors.Is(err, io.EOF):
			return
		case errors.Is(err, ipc.ErrUnknownType), errors.Is(err, ipc.ErrMalformed):
			s.logger.Warn(ctx, "bad report from worker", logger.Int("worker", sl.id), logger.Error(err))
			continue
		case err != nil:
			s.logger.Debug(ctx, "report channel closed", logger.Int("worker", sl.id), logger.Error(err))
			return
		}

		switch msg.Type {
		case ipc.TypeHeartbeat:
			s.heartbeat(ctx, sl, msg)
		case ipc.TypeLocalWinner:
			s.localWinner(ctx, sl, msg)
		default:
			s.logger.Warn(ctx, "unexpected message on report channel",
				logger.Int("worker", sl.id), logger.String("type", string(msg.Type)))
		}
	}
}

func (s *Supervisor) heartbeat(ctx context.Context, sl *slot, msg ipc.Message) {
	if msg.WorkerID != sl.id {
		s.logger.Warn(ctx, "heartbeat names another slot",
			logger.Int("worker", sl.id), logger.Int("claimed", msg.WorkerID))
	}
	s.mu.Lock()
	sl.lastBeat = msg.Timestamp
	s.mu.Unlock()

	metrics.RecordHeartbeat(sl.id)
	if msg.Stats != nil {
		metrics.UpdateWorkerStats(sl.id, msg.Stats.Accepted, msg.Stats.Rejected, msg.Stats.Connections)
	}
	if err := s.store.UpsertHeartbeat(ctx, sl.id, msg.PID, msg.Timestamp); err != nil {
		s.logger.Error(ctx, "failed to record heartbeat", logger.Int("worker", sl.id), logger.Error(err))
	}
}

func (s *Supervisor) localWinner(ctx context.Context, sl *slot, msg ipc.Message) {
	fields := []logger.Field{logger.Int("worker", sl.id), logger.String("session", msg.SessionID)}
	if msg.Winner != nil {
		fields = append(fields, logger.String("user", msg.Winner.UserID), logger.Int("clicks", msg.Winner.ClickCount))
	}
	s.logger.Info(ctx, "local winner reported", fields...)
	if s.onWinner != nil {
		s.onWinner(sl.id, msg)
	}
}

// BroadcastStart tells every running worker to open round sess.
func (s *Supervisor) BroadcastStart(ctx context.Context, sess model.Session) error {
	return s.broadcast(ctx, ipc.EventStart(sess.ID, sess.StartedAt, s.clock.Now().UnixMilli()))
}

// BroadcastEnd tells every running worker to close round sessionID.
func (s *Supervisor) BroadcastEnd(ctx context.Context, sessionID string) error {
	return s.broadcast(ctx, ipc.EventEnd(sessionID, s.clock.Now().UnixMilli()))
}

func (s *Supervisor) broadcast(ctx context.Context, msg ipc.Message) error {
	s.mu.Lock()
	targets := make([]*slot, 0, len(s.slots))
	for _, sl := range s.slots {
		targets = append(targets, sl)
	}
	s.mu.Unlock()

	var errs []error
	for _, sl := range targets {
		if err := sl.enc.Send(msg); err != nil {
			errs = append(errs, fmt.Errorf("worker %d: %w", sl.id, err))
		}
	}
	s.logger.Debug(ctx, "broadcast sent",
		logger.String("type", string(msg.Type)),
		logger.Int("workers", len(targets)),
		logger.Int("failed", len(errs)))
	return errors.Join(errs...)
}

// shutdown asks every worker to exit and kills those that do not in time.
func (s *Supervisor) shutdown(ctx context.Context) {
	s.mu.Lock()
	s.stopped = true
	procs := make([]Process, 0, len(s.slots))
	for _, sl := range s.slots {
		procs = append(procs, sl.proc)
	}
	s.mu.Unlock()

	for _, p := range procs {
		if err := p.Signal(syscall.SIGTERM); err != nil {
			s.logger.Debug(ctx, "signal worker", logger.Int("pid", p.PID()), logger.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-s.clock.After(shutdownTimeout):
		s.logger.Warn(ctx, "workers did not stop in time, killing")
		for _, p := range procs {
			_ = p.Kill()
		}
		<-done
	}
	s.logger.Info(ctx, "fleet stopped")
}
