// =============================================================================
// pkg/session/session.go - Session Orchestrator
// =============================================================================
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"seedstream/pkg/api"
	"seedstream/pkg/logging"
	"seedstream/pkg/metrics"
	"seedstream/pkg/progress"
	"seedstream/pkg/selection"
	"seedstream/pkg/stream"
	"seedstream/pkg/utils"
)

// ErrNotStartable is returned by Start on a session that already ran.
var ErrNotStartable = errors.New("session already started")

// State is the lifecycle state of a session.
type State int

const (
	StateCreated State = iota
	StateStarted
	StateReady
	StateStopped
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarted:
		return "started"
	case StateReady:
		return "ready"
	case StateStopped:
		return "stopped"
	case StateErrored:
		return "errored"
	}
	return "unknown"
}

// EngineFactory builds the download engine for a session.
type EngineFactory func(api.Options) (api.Engine, error)

// Options configures a session.
type Options struct {
	Source    string // defaults to the session ID
	SaveDir   string // defaults to <tmp>/seedstream
	Cleanup   bool   // remove downloaded data on stop
	Selection api.Selection
	MaxPeers  int
	RateLimit int64
	Server    stream.Options
}

// Session binds one torrent to one streaming server and relays engine
// events as notifications.
type Session struct {
	id      string
	opts    Options
	factory EngineFactory
	notify  func(Notification)
	logger  *slog.Logger

	sel selection.State

	mu        sync.Mutex
	state     State
	engine    api.Engine
	files     []api.FileEntry
	server    *stream.Server
	status    api.Status
	fileProg  float64
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}
}

func newSession(id string, opts Options, factory EngineFactory, notify func(Notification), logger *slog.Logger) *Session {
	if opts.Source == "" {
		opts.Source = id
	}
	if opts.SaveDir == "" {
		opts.SaveDir = utils.DefaultSaveDir()
	}
	if opts.Server.Logger == nil {
		opts.Server.Logger = logger
	}
	s := &Session{
		id:      id,
		opts:    opts,
		factory: factory,
		notify:  notify,
		logger:  logging.OrDiscard(logger).With(slog.String("session", id)),
	}
	s.sel.Set(opts.Selection, nil)
	return s
}

// ID returns the torrent identifier.
func (s *Session) ID() string { return s.id }

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// URL returns the stream URL once the session is ready.
func (s *Session) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return ""
	}
	return s.server.URL()
}

// Start creates and starts the download engine.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateCreated {
		s.mu.Unlock()
		return ErrNotStartable
	}

	engine, err := s.factory(api.Options{
		Source:      s.opts.Source,
		SaveDir:     s.opts.SaveDir,
		Selection:   s.sel.Selection(),
		MaxPeers:    s.opts.MaxPeers,
		RateLimit:   s.opts.RateLimit,
		RemoveAfter: s.opts.Cleanup,
	})
	if err != nil {
		s.state = StateErrored
		s.mu.Unlock()
		s.fail(fmt.Errorf("creating engine: %w", err))
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	if err := engine.Start(ctx); err != nil {
		cancel()
		s.engine = engine
		s.state = StateErrored
		s.mu.Unlock()
		s.fail(err)
		return err
	}

	s.engine = engine
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = StateStarted
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("session started", slog.String("save_dir", s.opts.SaveDir))
	go s.loop(engine.Events(), s.done)
	return nil
}

func (s *Session) loop(events <-chan api.Event, done chan struct{}) {
	defer close(done)
	for ev := range events {
		s.handle(ev)
	}
}

func (s *Session) handle(ev api.Event) {
	switch ev.Kind {
	case api.EventPrepared:
		s.notify(Notification{ID: s.id, Kind: NotifyProgress, Data: "prepared"})

	case api.EventStarted:
		s.mu.Lock()
		s.files = ev.Files
		s.mu.Unlock()
		if _, err := s.sel.Set(s.sel.Selection(), ev.Files); err != nil {
			s.logger.Warn("cannot resolve selection", slog.String("selection", s.sel.Selection().String()), slog.String("error", err.Error()))
		}
		s.notify(Notification{ID: s.id, Kind: NotifyProgress, Data: "started", Files: s.absolute(ev.Files)})

	case api.EventReady:
		s.ready(ev.File)

	case api.EventProgress:
		s.progress(ev.Status)

	case api.EventError:
		s.fail(ev.Err)

	case api.EventStopped:
		s.notify(Notification{ID: s.id, Kind: NotifyStop, Data: "stopped"})
	}
}

// ready starts the streaming server on first use and points it at the
// selected file.
func (s *Session) ready(engineFile api.FileEntry) {
	entry, ok := s.sel.Resolved()
	if !ok {
		entry = engineFile
	}

	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	if s.server == nil {
		srv := stream.NewServer(s.opts.Server)
		if err := srv.Start(); err != nil {
			s.state = StateErrored
			s.mu.Unlock()
			s.fail(fmt.Errorf("failed to start HTTP server: %w", err))
			return
		}
		s.server = srv
	}
	s.server.SetFile(s.path(entry), entry.Length)
	s.state = StateReady
	url := s.server.URL()
	s.mu.Unlock()

	s.logger.Info("stream ready", slog.String("url", url), slog.String("file", entry.Name))
	s.notify(Notification{
		ID:       s.id,
		Kind:     NotifyReady,
		URL:      url,
		FileName: entry.Name,
		FileSize: entry.Length,
	})
}

// progress turns an engine status into a file-level status notification.
func (s *Session) progress(st api.Status) {
	fp := st.Progress
	if entry, ok := s.sel.Resolved(); ok {
		if info, err := s.currentEngine().Pieces(); err == nil {
			fp = progress.FileProgress(entry.Offset, entry.Length, info.PieceLength, info.Bitfield, st.Progress)
		}
	}

	s.mu.Lock()
	s.status = st
	s.fileProg = fp
	s.mu.Unlock()

	metrics.FileProgress.WithLabelValues(s.id).Set(fp)
	s.notify(Notification{
		ID:           s.id,
		Kind:         NotifyStatus,
		Progress:     fp,
		Buffer:       st.Buffer,
		DownloadRate: st.DownloadRate,
		Peers:        st.Peers,
		Seeds:        st.Seeds,
	})
}

// fail surfaces err verbatim. The session stays usable for Stop.
func (s *Session) fail(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	if s.state != StateStopped {
		s.state = StateErrored
	}
	s.mu.Unlock()

	metrics.EngineErrorsTotal.Inc()
	s.logger.Error("session error", slog.String("error", err.Error()))
	s.notify(Notification{ID: s.id, Kind: NotifyError, Message: err.Error()})
}

// SelectFile replaces the selection. Before metadata is known the choice is
// kept and resolved once the file table arrives. Open connections keep
// streaming the file they started with.
func (s *Session) SelectFile(sel api.Selection) error {
	s.mu.Lock()
	files := s.files
	s.mu.Unlock()

	entry, err := s.sel.Set(sel, files)
	if errors.Is(err, selection.ErrNoFiles) {
		return nil
	}
	if err != nil {
		return err
	}

	if engine := s.currentEngine(); engine != nil {
		if err := engine.Select(entry); err != nil {
			s.logger.Warn("engine rejected selection", slog.String("error", err.Error()))
		}
	}

	s.mu.Lock()
	if s.state == StateReady && s.server != nil {
		s.server.SetFile(s.path(entry), entry.Length)
	}
	s.mu.Unlock()

	s.logger.Info("switched file", slog.String("selection", sel.String()), slog.String("file", entry.Name))
	return nil
}

// Stop stops the engine, waits for its remaining events and shuts the
// streaming server down.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return nil
	}
	engine, cancel, done := s.engine, s.cancel, s.done
	s.mu.Unlock()

	var err error
	if cancel != nil {
		cancel()
	}
	if engine != nil {
		err = engine.Stop()
	}
	if done != nil {
		<-done
	}

	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.state = StateStopped
	s.mu.Unlock()

	if srv != nil {
		if serr := srv.Stop(); serr != nil && err == nil {
			err = serr
		}
	}
	metrics.FileProgress.DeleteLabelValues(s.id)
	s.logger.Info("session stopped")
	return err
}

// Stats returns a snapshot of the session.
func (s *Session) Stats() api.Stats {
	entry, _ := s.sel.Resolved()

	s.mu.Lock()
	defer s.mu.Unlock()
	st := api.Stats{
		State:         s.state.String(),
		StreamingFile: entry.Name,
		StreamingSize: entry.Length,
		FileProgress:  s.fileProg,
		Progress:      s.status.Progress,
		DownloadRate:  s.status.DownloadRate,
		Peers:         s.status.Peers,
		Seeds:         s.status.Seeds,
	}
	if s.server != nil {
		st.URL = s.server.URL()
	}
	if !s.startedAt.IsZero() {
		st.Uptime = time.Since(s.startedAt)
	}
	return st
}

func (s *Session) currentEngine() api.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

func (s *Session) path(entry api.FileEntry) string {
	return filepath.Join(s.opts.SaveDir, filepath.FromSlash(entry.Path))
}

func (s *Session) absolute(files []api.FileEntry) []api.FileEntry {
	out := make([]api.FileEntry, len(files))
	for i, f := range files {
		f.Path = s.path(f)
		out[i] = f
	}
	return out
}
