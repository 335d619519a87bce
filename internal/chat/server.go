package chat

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"syscall"
)

// Server accepts connections and runs one Session per connection against a
// single shared Registry. There is no cap on concurrent sessions.
type Server struct {
	addr        string
	logger      *slog.Logger
	reg         *Registry
	outboxLimit int

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closing  bool
	sessions sync.WaitGroup
}

// DefaultOutboxLimit is the per-client backlog, in lines, past which a
// client that stopped reading is disconnected.
const DefaultOutboxLimit = 10000

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithOutboxLimit sets how many lines may pile up for one client before it
// is disconnected. Zero means no limit.
func WithOutboxLimit(limit int) ServerOption {
	return func(s *Server) {
		if limit >= 0 {
			s.outboxLimit = limit
		}
	}
}

// WithRegistry injects the registry shared by all sessions.
func WithRegistry(reg *Registry) ServerOption {
	return func(s *Server) {
		if reg != nil {
			s.reg = reg
		}
	}
}

func NewServer(addr string, opts ...ServerOption) *Server {
	s := &Server{
		addr:        addr,
		logger:      slog.Default(),
		outboxLimit: DefaultOutboxLimit,
		conns:       make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.reg == nil {
		s.reg = NewRegistry(s.logger)
	}
	return s
}

func (s *Server) Registry() *Registry {
	return s.reg
}

// Addr returns the listening address once Serve has started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ln)
}

// Serve runs the accept loop on ln. It returns nil after Stop and the
// listener error when the listener fails for good.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrServerClosed
	}
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("server started", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosing() {
				return nil
			}
			if isTransient(err) {
				AcceptErrors.Inc()
				s.logger.Warn("accept failed", "error", err)
				continue
			}
			s.logger.Error("listener failed", "error", err)
			return fmt.Errorf("accept: %w", err)
		}

		if !s.track(conn) {
			_ = conn.Close()
			return nil
		}

		s.logger.Info("client connected", "addr", conn.RemoteAddr().String())
		sess := NewSession(conn, s.reg, s.outboxLimit, s.logger)
		go func() {
			defer s.untrack(conn)
			sess.Run()
		}()
	}
}

// Stop closes the listener and every live connection, then waits for the
// sessions to finish their cleanup.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return
	}
	s.closing = true
	s.logger.Info("shutting down")
	if s.listener != nil {
		_ = s.listener.Close()
	}
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	s.sessions.Wait()
	s.logger.Info("shutdown complete")
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns[conn] = struct{}{}
	s.sessions.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.sessions.Done()
}

// isTransient reports accept errors that leave the listener usable.
func isTransient(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE)
}
