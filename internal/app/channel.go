package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/okian/clickrace/internal/adapters/ipc"
	"github.com/okian/clickrace/pkg/logger"
)

// Sender delivers messages to the supervisor.
type Sender interface {
	Send(msg ipc.Message) error
}

// Receiver yields control messages from the supervisor.
type Receiver interface {
	Receive() (ipc.Message, error)
}

// RunHeartbeats reports liveness immediately and then on every interval until
// ctx ends. A failed send means the supervisor is gone and stops the loop.
func (r *Runtime) RunHeartbeats(ctx context.Context, out Sender) error {
	ticker := r.clock.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()

	for {
		if err := out.Send(ipc.Heartbeat(r.workerID, r.pid, r.clock.Now().UnixMilli(), r.Stats())); err != nil {
			return fmt.Errorf("send heartbeat: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
		}
	}
}

// ServeControl applies control messages until the supervisor closes its end.
// Ending a round answers with this worker's local winner.
func (r *Runtime) ServeControl(ctx context.Context, in Receiver, out Sender) error {
	for {
		msg, err := in.Receive()
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, ipc.ErrUnknownType), errors.Is(err, ipc.ErrMalformed):
			r.logger.Warn(ctx, "ignoring control message", logger.Error(err))
			continue
		case err != nil:
			return fmt.Errorf("receive control message: %w", err)
		}

		switch msg.Type {
		case ipc.TypeEventStart:
			r.game.AdoptEvent(msg.SessionID, msg.StartedAt)
			r.logger.Info(ctx, "round started", logger.String("session", msg.SessionID))
		case ipc.TypeEventEnd:
			winner := r.EndEvent(ctx, msg.SessionID)
			if err := out.Send(ipc.LocalWinner(r.workerID, msg.SessionID, r.clock.Now().UnixMilli(), winner)); err != nil {
				return fmt.Errorf("send local winner: %w", err)
			}
		default:
			r.logger.Warn(ctx, "unexpected message on control channel", logger.String("type", string(msg.Type)))
		}
	}
}
