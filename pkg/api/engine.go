// =============================================================================
// pkg/api/engine.go - Download Engine Collaborator Interface
// =============================================================================
package api

import (
	"context"
	"time"
)

// Engine is the download engine a session drives. It is consumed, not
// implemented, by the streaming core: the core only lists files, reads the
// piece bitfield and listens to lifecycle events.
type Engine interface {
	// Start begins downloading. Lifecycle events are delivered on Events.
	Start(ctx context.Context) error
	// Events is closed once the engine has stopped.
	Events() <-chan Event
	Files() ([]FileEntry, error)
	Pieces() (PieceInfo, error)
	// Select tells the engine which file the session wants to play.
	Select(entry FileEntry) error
	Stop() error
}

// Options configures one engine instance.
type Options struct {
	Source      string    // Magnet link or path to a .torrent file
	SaveDir     string    // Download directory
	Selection   Selection // File to stream
	MaxPeers    int       // Maximum number of peers
	RateLimit   int64     // Download rate limit in bytes/sec (0 = unlimited)
	RemoveAfter bool      // Delete downloaded data on Stop
}

// FileEntry is one row of a torrent's file table.
type FileEntry struct {
	Index  int
	Path   string // relative to the save directory
	Name   string
	Offset int64 // byte offset within the torrent
	Length int64
}

// PieceInfo is a snapshot of the engine's piece state.
type PieceInfo struct {
	PieceLength int64
	Bitfield    []bool  // nil until metadata and pieces are known
	Overall     float64 // whole-torrent progress (0-1)
}

// Stats provides runtime statistics for one session.
type Stats struct {
	State         string
	URL           string
	StreamingFile string  // Currently streaming file name
	StreamingSize int64   // Size of streaming file
	FileProgress  float64 // Progress of the selected file (0-1)
	Progress      float64 // Whole-torrent progress (0-1)
	DownloadRate  float64 // bytes/sec
	Peers         int
	Seeds         int
	Uptime        time.Duration
}
