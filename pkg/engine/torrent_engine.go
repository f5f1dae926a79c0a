// =============================================================================
// pkg/engine/torrent_engine.go - anacrolix/torrent Download Engine
// =============================================================================
package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"seedstream/pkg/api"
	"seedstream/pkg/logging"
	"seedstream/pkg/progress"
	"seedstream/pkg/selection"
	"seedstream/pkg/utils"
)

// ErrNoInfo is returned while the torrent metadata is still being fetched.
var ErrNoInfo = errors.New("torrent info not available yet")

const (
	// readyMinPieces is the minimum head window checked for readiness.
	readyMinPieces = 5
	statusInterval = time.Second
)

// TorrentEngine implements api.Engine on top of an anacrolix client. Each
// engine owns its own client so sessions never share a listen port.
type TorrentEngine struct {
	opts   api.Options
	logger *slog.Logger
	events chan api.Event

	mu       sync.Mutex
	client   *torrent.Client
	torrent  *torrent.Torrent
	file     *torrent.File
	index    int
	ready    bool
	lastRead int64
	lastAt   time.Time

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewTorrentEngine creates a new torrent engine instance
func NewTorrentEngine(opts api.Options, logger *slog.Logger) *TorrentEngine {
	return &TorrentEngine{
		opts:   opts,
		logger: logging.OrDiscard(logger).With(slog.String("component", "engine")),
		events: make(chan api.Event, 32),
	}
}

// Factory adapts NewTorrentEngine to the session manager's engine factory.
func Factory(logger *slog.Logger) func(api.Options) (api.Engine, error) {
	return func(opts api.Options) (api.Engine, error) {
		return NewTorrentEngine(opts, logger), nil
	}
}

// Events implements api.Engine.
func (e *TorrentEngine) Events() <-chan api.Event { return e.events }

// Start creates the client, adds the torrent and begins watching it.
func (e *TorrentEngine) Start(ctx context.Context) error {
	if e.opts.SaveDir == "" {
		e.opts.SaveDir = utils.DefaultSaveDir()
	}
	if err := checkSource(e.opts.Source); err != nil {
		return err
	}
	if err := os.MkdirAll(e.opts.SaveDir, 0o755); err != nil {
		return errors.Wrap(err, "creating save directory")
	}

	client, err := torrent.NewClient(clientConfig(e.opts))
	if err != nil {
		return errors.Wrap(err, "creating torrent client")
	}

	t, err := addTorrent(client, e.opts.Source)
	if err != nil {
		client.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.client = client
	e.torrent = t
	e.cancel = cancel
	e.mu.Unlock()

	e.emit(ctx, api.Event{Kind: api.EventPrepared})

	e.wg.Add(1)
	go e.run(ctx, t)
	return nil
}

func clientConfig(opts api.Options) *torrent.ClientConfig {
	cfg := torrent.NewDefaultClientConfig()
	cfg.DataDir = opts.SaveDir
	cfg.ListenPort = 0
	cfg.DisablePEX = false
	cfg.NoDHT = false
	cfg.DisableTrackers = false

	if opts.MaxPeers > 0 {
		cfg.EstablishedConnsPerTorrent = opts.MaxPeers
	}
	if l := rateLimiter(opts.RateLimit); l != nil {
		cfg.DownloadRateLimiter = l
	}
	return cfg
}

// rateLimiter returns nil for an unlimited rate.
func rateLimiter(bytesPerSec int64) *rate.Limiter {
	if bytesPerSec <= 0 {
		return nil
	}
	burst := int(bytesPerSec)
	if burst < 1<<16 {
		burst = 1 << 16
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), burst)
}

func checkSource(src string) error {
	if strings.HasPrefix(src, "magnet:") || utils.FileExists(src) {
		return nil
	}
	return errors.Errorf("source %q is neither a magnet link nor a torrent file", src)
}

// addTorrent supports both magnet links and .torrent files
func addTorrent(client *torrent.Client, src string) (*torrent.Torrent, error) {
	if strings.HasPrefix(src, "magnet:") {
		t, err := client.AddMagnet(src)
		if err != nil {
			return nil, errors.Wrap(err, "adding magnet")
		}
		return t, nil
	}

	mi, err := metainfo.LoadFromFile(src)
	if err != nil {
		return nil, errors.Wrap(err, "loading torrent file from path")
	}
	t, err := client.AddTorrent(mi)
	if err != nil {
		return nil, errors.Wrap(err, "adding torrent")
	}
	return t, nil
}

// run waits for metadata, announces the file table and then reports status
// until the context ends.
func (e *TorrentEngine) run(ctx context.Context, t *torrent.Torrent) {
	defer e.wg.Done()

	e.logger.Info("getting torrent info")
	select {
	case <-t.GotInfo():
	case <-ctx.Done():
		return
	}

	files := mapFiles(t)
	e.logger.Info("torrent info received", slog.String("name", t.Name()), slog.Int("files", len(files)))
	e.emit(ctx, api.Event{Kind: api.EventStarted, Files: files})

	entry, err := selection.Resolve(files, e.opts.Selection)
	if err != nil {
		e.emit(ctx, api.Event{Kind: api.EventError, Err: errors.Wrap(err, "selecting file")})
		return
	}
	if err := e.Select(entry); err != nil {
		e.emit(ctx, api.Event{Kind: api.EventError, Err: err})
		return
	}

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			e.report(ctx, t, now)
		}
	}
}

// report emits a progress event and, the first time the head of the selected
// file is available, a ready event.
func (e *TorrentEngine) report(ctx context.Context, t *torrent.Torrent, now time.Time) {
	info, _ := e.Pieces()
	stats := t.Stats()

	e.mu.Lock()
	f, index := e.file, e.index
	read := stats.BytesReadUsefulData.Int64()
	var speed float64
	if !e.lastAt.IsZero() {
		if dt := now.Sub(e.lastAt).Seconds(); dt > 0 {
			speed = float64(read-e.lastRead) / dt
		}
	}
	e.lastRead, e.lastAt = read, now
	e.mu.Unlock()

	if f == nil {
		return
	}

	status := api.Status{
		Progress:     info.Overall,
		Buffer:       progress.HeadFraction(f.Offset(), f.Length(), info.PieceLength, info.Bitfield, readyMinPieces),
		DownloadRate: speed,
		Peers:        stats.ActivePeers,
		Seeds:        stats.ConnectedSeeders,
	}
	e.emitStatus(api.Event{Kind: api.EventProgress, Status: status})

	if !progress.HeadReady(f.Offset(), f.Length(), info.PieceLength, info.Bitfield, readyMinPieces) {
		return
	}
	e.mu.Lock()
	already := e.ready
	e.ready = true
	e.mu.Unlock()
	if !already {
		e.logger.Info("stream ready", slog.String("file", f.DisplayPath()))
		e.emit(ctx, api.Event{Kind: api.EventReady, File: fileEntry(index, f)})
	}
}

// Files implements api.Engine.
func (e *TorrentEngine) Files() ([]api.FileEntry, error) {
	t := e.current()
	if !infoReady(t) {
		return nil, ErrNoInfo
	}
	return mapFiles(t), nil
}

// Pieces implements api.Engine. The bitfield is nil until metadata is known.
func (e *TorrentEngine) Pieces() (api.PieceInfo, error) {
	t := e.current()
	if !infoReady(t) {
		return api.PieceInfo{}, nil
	}
	n := t.NumPieces()
	bits := make([]bool, n)
	for i := 0; i < n; i++ {
		bits[i] = t.PieceState(i).Complete
	}
	var overall float64
	if total := t.Length(); total > 0 {
		overall = float64(t.BytesCompleted()) / float64(total)
	}
	return api.PieceInfo{
		PieceLength: t.Info().PieceLength,
		Bitfield:    bits,
		Overall:     overall,
	}, nil
}

// Select allows changing the file being downloaded for streaming
func (e *TorrentEngine) Select(entry api.FileEntry) error {
	t := e.current()
	if !infoReady(t) {
		return ErrNoInfo
	}
	files := t.Files()
	if entry.Index < 0 || entry.Index >= len(files) {
		return errors.Wrapf(selection.ErrIndexOutOfRange, "file index %d", entry.Index)
	}
	f := files[entry.Index]

	e.mu.Lock()
	if e.file == f {
		e.mu.Unlock()
		return nil
	}
	e.file = f
	e.index = entry.Index
	e.ready = false
	e.mu.Unlock()

	f.SetPriority(torrent.PiecePriorityNormal)
	prioritizeHead(t, f)

	e.logger.Info("selected file",
		slog.String("file", f.DisplayPath()),
		slog.Int64("size", f.Length()))
	return nil
}

// prioritizeHead marks the first pieces of f as urgent so playback can
// start before the rest arrives.
func prioritizeHead(t *torrent.Torrent, f *torrent.File) {
	span, err := progress.PieceSpan(f.Offset(), f.Length(), t.Info().PieceLength)
	if err != nil {
		return
	}
	head := span.Head(readyMinPieces)
	for i := head.First; i <= head.Last; i++ {
		t.Piece(i).SetPriority(torrent.PiecePriorityNow)
	}
}

// Stop gracefully shuts down the engine and closes the event channel
func (e *TorrentEngine) Stop() error {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		cancel, t, client := e.cancel, e.torrent, e.client
		e.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		e.wg.Wait()

		var name string
		if infoReady(t) {
			name = t.Name()
		}
		if t != nil {
			t.Drop()
		}
		if client != nil {
			client.Close()
		}

		if e.opts.RemoveAfter && name != "" {
			target := filepath.Join(e.opts.SaveDir, name)
			if err := os.RemoveAll(target); err != nil {
				e.logger.Warn("cleaning up download", slog.String("path", target), slog.String("error", err.Error()))
			}
		}

		e.events <- api.Event{Kind: api.EventStopped}
		close(e.events)
	})
	return nil
}

func (e *TorrentEngine) current() *torrent.Torrent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.torrent
}

// emit delivers lifecycle events, blocking until they are consumed or ctx ends.
func (e *TorrentEngine) emit(ctx context.Context, ev api.Event) {
	select {
	case e.events <- ev:
	case <-ctx.Done():
	}
}

// emitStatus drops progress events when the consumer lags.
func (e *TorrentEngine) emitStatus(ev api.Event) {
	select {
	case e.events <- ev:
	default:
	}
}

func infoReady(t *torrent.Torrent) bool {
	if t == nil {
		return false
	}
	select {
	case <-t.GotInfo():
		return true
	default:
		return false
	}
}

func mapFiles(t *torrent.Torrent) []api.FileEntry {
	files := t.Files()
	mapped := make([]api.FileEntry, 0, len(files))
	for i, f := range files {
		mapped = append(mapped, fileEntry(i, f))
	}
	return mapped
}

func fileEntry(index int, f *torrent.File) api.FileEntry {
	return api.FileEntry{
		Index:  index,
		Path:   f.Path(),
		Name:   filepath.Base(f.DisplayPath()),
		Offset: f.Offset(),
		Length: f.Length(),
	}
}
