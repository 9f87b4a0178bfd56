// Package ingress serves the click protocol: JSON documents on a persistent
// TCP stream, answered one response per document.
package ingress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/clickrace/internal/domain/model"
	"github.com/okian/clickrace/pkg/logger"
	"github.com/okian/clickrace/pkg/metrics"
)

// Default server configuration constants.
const (
	defaultIdleTimeout    = 30 * time.Second
	defaultPartialTimeout = 200 * time.Millisecond
	writeTimeout          = 5 * time.Second
	readChunk             = 4096
	maxDocument           = 64 * 1024
)

// ErrServerClosed is returned by Serve after Close.
var ErrServerClosed = errors.New("ingress: server closed")

// Click is a parsed click request.
type Click struct {
	UserID    string
	SessionID string
	Timestamp int64
}

// Handler decides clicks. It is called from one goroutine per connection.
type Handler interface {
	HandleClick(ctx context.Context, c Click) model.Decision
}

// Server accepts click connections.
type Server struct {
	addr           string
	handler        Handler
	idleTimeout    time.Duration
	partialTimeout time.Duration
	clock          clockwork.Clock
	reusePort      bool
	logger         logger.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup

	active atomic.Int64
}

// NewServer creates a server for addr.
func NewServer(addr string, handler Handler, opts ...Option) *Server {
	s := &Server{
		addr:           addr,
		handler:        handler,
		idleTimeout:    defaultIdleTimeout,
		partialTimeout: defaultPartialTimeout,
		clock:          clockwork.NewRealClock(),
		reusePort:      true,
		logger:         logger.Get().Named("ingress"),
		conns:          make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Listen binds the listening socket.
func (s *Server) Listen(ctx context.Context) error {
	ln, err := listen(ctx, s.addr, s.reusePort)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.logger.Info(ctx, "click ingress listening", logger.String("addr", ln.Addr().String()))
	return nil
}

// Serve accepts connections until Close. Listen must have been called.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("ingress: Serve called before Listen")
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}

		if !s.track(conn) {
			_ = conn.Close()
			return ErrServerClosed
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.serveConn(ctx, conn)
		}()
	}
}

// ListenAndServe binds and serves.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(ctx); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Connections returns the number of open client connections.
func (s *Server) Connections() int {
	return int(s.active.Load())
}

// Close stops accepting, closes open connections and waits for their handlers.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ln := s.listener
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	s.wg.Wait()
	return err
}

func (s *Server) track(c net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	s.active.Add(1)
	metrics.ConnectionOpened()
	return true
}

func (s *Server) untrack(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	s.active.Add(-1)
	metrics.ConnectionClosed()
	_ = c.Close()
}

// serveConn answers every complete document in arrival order. Documents need
// not be newline separated. A document still incomplete after the partial
// timeout is answered with INVALID_FORMAT and dropped.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	log := s.logger.With(logger.String("remote", conn.RemoteAddr().String()))
	enc := json.NewEncoder(conn)

	var pending []byte
	chunk := make([]byte, readChunk)
	for {
		s.setReadDeadline(conn, len(pending) > 0)

		n, err := conn.Read(chunk)
		pending = append(pending, chunk[:n]...)
		var ok bool
		if pending, ok = s.drain(ctx, conn, enc, pending); !ok {
			return
		}
		if err == nil {
			continue
		}

		switch {
		case isTimeout(err) && len(pending) > 0:
			pending = nil
			if !s.replyError(conn, enc, CodeInvalidFormat) {
				return
			}
			continue
		case errors.Is(err, io.EOF):
		case isTimeout(err):
			log.Debug(ctx, "closing idle connection")
		default:
			log.Debug(ctx, "connection closed", logger.Error(err))
		}
		return
	}
}

func (s *Server) setReadDeadline(conn net.Conn, partial bool) {
	d := s.idleTimeout
	if partial && s.partialTimeout > 0 {
		d = s.partialTimeout
	}
	if d > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(d))
		return
	}
	_ = conn.SetReadDeadline(time.Time{})
}

// drain answers the complete documents at the front of buf and returns the
// incomplete remainder. It reports false once the connection can no longer
// be written.
func (s *Server) drain(ctx context.Context, conn net.Conn, enc *json.Encoder, buf []byte) ([]byte, bool) {
	for {
		buf = bytes.TrimLeft(buf, " \t\r\n")
		if len(buf) == 0 {
			return nil, true
		}

		dec := json.NewDecoder(bytes.NewReader(buf))
		var raw json.RawMessage
		err := dec.Decode(&raw)

		var syntaxErr *json.SyntaxError
		switch {
		case err == nil:
			buf = buf[dec.InputOffset():]
			if !s.reply(conn, enc, s.handle(ctx, raw)) {
				return nil, false
			}
		case errors.As(err, &syntaxErr):
			buf = resync(buf, syntaxErr.Offset)
			if !s.replyError(conn, enc, CodeInvalidFormat) {
				return nil, false
			}
		default:
			// Incomplete: wait for the rest unless it has grown past any click.
			if len(buf) <= maxDocument {
				return buf, true
			}
			if !s.replyError(conn, enc, CodeInvalidFormat) {
				return nil, false
			}
			return nil, true
		}
	}
}

// resync drops a malformed document from the front of buf. Decoding resumes
// at the first '{' at or after the offending byte.
func resync(buf []byte, offset int64) []byte {
	from := max(int(offset)-1, 1)
	if from >= len(buf) {
		return nil
	}
	if i := bytes.IndexByte(buf[from:], '{'); i >= 0 {
		return buf[from+i:]
	}
	return nil
}

func (s *Server) handle(ctx context.Context, raw json.RawMessage) response {
	var req request
	if err := json.Unmarshal(raw, &req); err != nil || !req.valid() {
		metrics.RecordIngressError(CodeInvalidRequest)
		return errorResponse(CodeInvalidRequest)
	}

	ts := s.clock.Now().UnixMilli()
	if req.Timestamp != nil {
		ts = int64(*req.Timestamp)
	}
	d := s.handler.HandleClick(ctx, Click{UserID: req.UserID, SessionID: req.SessionID, Timestamp: ts})
	return decisionResponse(d)
}

func (s *Server) reply(conn net.Conn, enc *json.Encoder, r response) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return enc.Encode(r) == nil
}

func (s *Server) replyError(conn net.Conn, enc *json.Encoder, code string) bool {
	metrics.RecordIngressError(code)
	return s.reply(conn, enc, errorResponse(code))
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
