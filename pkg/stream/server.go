// =============================================================================
// pkg/stream/server.go - Streaming Server Lifecycle
// =============================================================================
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"seedstream/pkg/logging"
	"seedstream/pkg/utils"
)

var (
	// ErrServerRunning is returned by Start on a server that is not stopped.
	ErrServerRunning = errors.New("stream server already running")
	// ErrNoTarget means no file is configured or it does not exist.
	ErrNoTarget = errors.New("no stream target")
)

// State is the lifecycle state of a Server.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateListening
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateListening:
		return "listening"
	case StateShuttingDown:
		return "shutting_down"
	}
	return "unknown"
}

// Target is the file currently served. It is never mutated once published;
// a new selection publishes a new Target.
type Target struct {
	Path        string
	Length      int64 // declared length; 0 means use the on-disk size
	ContentType string
}

// NewTarget builds a Target with the MIME type derived from the extension.
func NewTarget(path string, length int64) *Target {
	return &Target{Path: path, Length: length, ContentType: utils.ContentType(path)}
}

// Options configures a Server.
type Options struct {
	Host           string        // bind address, default 127.0.0.1
	Port           int           // 0 picks a free port
	Workers        int           // concurrent connections, default 4
	RequestTimeout time.Duration // time allowed to send the request head, default 30s
	Logger         *slog.Logger
}

// Server streams a single file to HTTP clients issuing byte-range requests.
type Server struct {
	opts   Options
	logger *slog.Logger

	state  atomic.Int32
	target atomic.Pointer[Target]

	mu       sync.Mutex
	listener net.Listener
	port     int
	conns    map[net.Conn]struct{}
	cancel   context.CancelFunc
	closing  bool

	wg sync.WaitGroup
}

// NewServer creates a new streaming server
func NewServer(opts Options) *Server {
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	return &Server{
		opts:   opts,
		logger: logging.OrDiscard(opts.Logger).With(slog.String("component", "stream")),
		conns:  make(map[net.Conn]struct{}),
	}
}

// SetTarget publishes t as the file to serve. Connections already streaming
// keep the target they started with.
func (s *Server) SetTarget(t *Target) {
	s.target.Store(t)
	if t != nil {
		s.logger.Info("stream target set",
			slog.String("path", t.Path),
			slog.Int64("length", t.Length),
			slog.String("content_type", t.ContentType))
	}
}

// SetFile is a shorthand for SetTarget(NewTarget(path, length)).
func (s *Server) SetFile(path string, length int64) {
	s.SetTarget(NewTarget(path, length))
}

// Target returns the current target, or nil.
func (s *Server) Target() *Target {
	return s.target.Load()
}

// State returns the lifecycle state.
func (s *Server) State() State {
	return State(s.state.Load())
}

// Start binds the listening socket and starts the accept loop.
func (s *Server) Start() error {
	if !s.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return ErrServerRunning
	}

	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.state.Store(int32(StateStopped))
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.listener = ln
	s.port = ln.Addr().(*net.TCPAddr).Port
	s.cancel = cancel
	s.closing = false
	s.mu.Unlock()

	s.state.Store(int32(StateListening))
	s.wg.Add(1)
	go s.serve(ctx, ln, semaphore.NewWeighted(int64(s.opts.Workers)))

	s.logger.Info("stream server listening", slog.String("url", s.URL()), slog.Int("workers", s.opts.Workers))
	return nil
}

// Stop closes the listening socket and cuts off in-flight connections.
// It returns once the accept loop and all workers have exited.
func (s *Server) Stop() error {
	if !s.state.CompareAndSwap(int32(StateListening), int32(StateShuttingDown)) {
		return nil
	}

	s.mu.Lock()
	s.closing = true
	ln := s.listener
	s.cancel()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()

	err := ln.Close()
	s.wg.Wait()

	s.mu.Lock()
	s.listener = nil
	s.mu.Unlock()
	s.state.Store(int32(StateStopped))
	s.logger.Info("stream server stopped")

	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// Port returns the bound port, or 0 when the server never started.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// URL returns the streaming URL
func (s *Server) URL() string {
	host := s.opts.Host
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s/stream", net.JoinHostPort(host, strconv.Itoa(s.Port())))
}

// track registers or forgets a live connection. It reports false when the
// server is shutting down, in which case the connection is closed.
func (s *Server) track(c net.Conn, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !add {
		delete(s.conns, c)
		return true
	}
	if s.closing {
		c.Close()
		return false
	}
	s.conns[c] = struct{}{}
	return true
}
