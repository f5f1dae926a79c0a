// =============================================================================
// pkg/session/manager.go - Session Registry
// =============================================================================
package session

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"seedstream/pkg/api"
	"seedstream/pkg/logging"
	"seedstream/pkg/metrics"
	"seedstream/pkg/stream"
)

// ErrUnknownSession is returned for IDs that are not registered.
var ErrUnknownSession = errors.New("unknown session")

const defaultNotificationBuffer = 256

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Server stream.Options // template for every session's streaming server
	Logger *slog.Logger
	Buffer int // notification channel capacity
}

// Manager keeps one session per torrent identifier and fans their
// notifications into a single channel. Consumers must drain Notifications.
type Manager struct {
	factory EngineFactory
	server  stream.Options
	logger  *slog.Logger
	notes   chan Notification

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates an empty registry.
func NewManager(factory EngineFactory, opts ManagerOptions) *Manager {
	if opts.Buffer <= 0 {
		opts.Buffer = defaultNotificationBuffer
	}
	return &Manager{
		factory:  factory,
		server:   opts.Server,
		logger:   logging.OrDiscard(opts.Logger).With(slog.String("component", "session")),
		notes:    make(chan Notification, opts.Buffer),
		sessions: make(map[string]*Session),
	}
}

// Notifications returns the channel every session reports on.
func (m *Manager) Notifications() <-chan Notification { return m.notes }

// notify drops status updates when the consumer lags; other kinds block.
func (m *Manager) notify(n Notification) {
	if n.Kind == NotifyStatus {
		select {
		case m.notes <- n:
		default:
		}
		return
	}
	m.notes <- n
}

// Create registers a session. An existing session with the same ID is
// returned unchanged and created reports false.
func (m *Manager) Create(id string, opts Options) (s *Session, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s, false
	}
	if opts.Server == (stream.Options{}) {
		opts.Server = m.server
	}
	s = newSession(id, opts, m.factory, m.notify, m.logger)
	m.sessions[id] = s
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.logger.Info("session created", slog.String("id", id))
	return s, true
}

// Session looks up a registered session.
func (m *Manager) Session(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// IDs lists registered sessions in sorted order.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Start starts a registered session.
func (m *Manager) Start(ctx context.Context, id string) error {
	s, ok := m.Session(id)
	if !ok {
		return ErrUnknownSession
	}
	return s.Start(ctx)
}

// SelectFile changes the file a session streams.
func (m *Manager) SelectFile(id string, sel api.Selection) error {
	s, ok := m.Session(id)
	if !ok {
		return ErrUnknownSession
	}
	return s.SelectFile(sel)
}

// Stats returns a session snapshot.
func (m *Manager) Stats(id string) (api.Stats, error) {
	s, ok := m.Session(id)
	if !ok {
		return api.Stats{}, ErrUnknownSession
	}
	return s.Stats(), nil
}

// Stop stops a session and removes it from the registry.
func (m *Manager) Stop(id string) error {
	s, ok := m.Session(id)
	if !ok {
		return ErrUnknownSession
	}
	err := s.Stop()
	m.Destroy(id)
	return err
}

// Destroy removes a session from the registry without stopping it.
func (m *Manager) Destroy(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return
	}
	delete(m.sessions, id)
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
}

// Close stops every session.
func (m *Manager) Close() error {
	var errs []error
	for _, id := range m.IDs() {
		if err := m.Stop(id); err != nil && !errors.Is(err, ErrUnknownSession) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
