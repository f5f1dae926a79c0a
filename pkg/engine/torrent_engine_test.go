package engine

import (
	"context"
	"path/filepath"
	"testing"

	"golang.org/x/time/rate"

	"seedstream/pkg/api"
	"seedstream/pkg/logging"
)

func TestRateLimiter(t *testing.T) {
	if rateLimiter(0) != nil || rateLimiter(-5) != nil {
		t.Fatalf("non-positive rates must be unlimited")
	}
	l := rateLimiter(1000)
	if l.Limit() != rate.Limit(1000) {
		t.Fatalf("limit = %v", l.Limit())
	}
	if l.Burst() < 1<<16 {
		t.Fatalf("burst %d smaller than a request chunk", l.Burst())
	}
	if big := rateLimiter(10 << 20); big.Burst() != 10<<20 {
		t.Fatalf("burst = %d", big.Burst())
	}
}

func TestClientConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := clientConfig(api.Options{SaveDir: dir, MaxPeers: 17, RateLimit: 4096})
	if cfg.DataDir != dir {
		t.Fatalf("DataDir = %q", cfg.DataDir)
	}
	if cfg.ListenPort != 0 {
		t.Fatalf("each engine must pick its own port, got %d", cfg.ListenPort)
	}
	if cfg.EstablishedConnsPerTorrent != 17 {
		t.Fatalf("EstablishedConnsPerTorrent = %d", cfg.EstablishedConnsPerTorrent)
	}
	if cfg.DownloadRateLimiter == nil || cfg.DownloadRateLimiter.Limit() != rate.Limit(4096) {
		t.Fatalf("rate limit not applied")
	}
}

func TestCheckSource(t *testing.T) {
	if err := checkSource("magnet:?xt=urn:btih:0123456789abcdef0123456789abcdef01234567"); err != nil {
		t.Fatalf("magnet rejected: %v", err)
	}
	if err := checkSource(filepath.Join(t.TempDir(), "missing.torrent")); err == nil {
		t.Fatalf("expected an error for a missing torrent file")
	}
}

func TestNoInfoBeforeStart(t *testing.T) {
	e := NewTorrentEngine(api.Options{}, logging.Discard())
	if _, err := e.Files(); err != ErrNoInfo {
		t.Fatalf("Files: expected ErrNoInfo, got %v", err)
	}
	info, err := e.Pieces()
	if err != nil || info.Bitfield != nil {
		t.Fatalf("Pieces before metadata must be empty, got %+v, %v", info, err)
	}
	if err := e.Select(api.FileEntry{}); err != ErrNoInfo {
		t.Fatalf("Select: expected ErrNoInfo, got %v", err)
	}
}

func TestStopClosesEvents(t *testing.T) {
	e := NewTorrentEngine(api.Options{}, nil)
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := e.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}

	var kinds []api.EventKind
	for ev := range e.Events() {
		kinds = append(kinds, ev.Kind)
	}
	if len(kinds) != 1 || kinds[0] != api.EventStopped {
		t.Fatalf("expected a single stopped event, got %v", kinds)
	}
}

func TestStartFailsForBadSource(t *testing.T) {
	e := NewTorrentEngine(api.Options{
		Source:  filepath.Join(t.TempDir(), "nothing-here"),
		SaveDir: t.TempDir(),
	}, nil)
	if err := e.Start(context.Background()); err == nil {
		t.Fatalf("expected Start to fail")
	}
	e.Stop()
}

func TestStopDeliversStoppedWhenBufferFull(t *testing.T) {
	e := NewTorrentEngine(api.Options{}, nil)
	for i := 0; i < cap(e.events); i++ {
		e.events <- api.Event{Kind: api.EventProgress}
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		e.Stop()
	}()

	var last api.EventKind
	n := 0
	for ev := range e.Events() {
		last = ev.Kind
		n++
	}
	<-stopped
	if n != cap(e.events)+1 || last != api.EventStopped {
		t.Fatalf("got %d events ending with %s, want %d ending with stopped", n, last, cap(e.events)+1)
	}
}
