// =============================================================================
// pkg/api/events.go - Engine Lifecycle Events
// =============================================================================
package api

// EventKind identifies an engine lifecycle notification.
type EventKind int

const (
	EventPrepared EventKind = iota
	EventStarted
	EventReady
	EventProgress
	EventError
	EventStopped
)

func (k EventKind) String() string {
	switch k {
	case EventPrepared:
		return "prepared"
	case EventStarted:
		return "started"
	case EventReady:
		return "ready"
	case EventProgress:
		return "progress"
	case EventError:
		return "error"
	case EventStopped:
		return "stopped"
	}
	return "unknown"
}

// Event is pushed by an Engine. Only the fields relevant to Kind are set.
type Event struct {
	Kind EventKind

	// EventStarted
	Files []FileEntry

	// EventReady: the playable file chosen by the engine
	File FileEntry

	// EventProgress
	Status Status

	// EventError
	Err error
}

// Status is the engine's periodic transfer report.
type Status struct {
	Progress     float64 // whole-torrent progress (0-1)
	Buffer       float64 // head-of-file readiness (0-1)
	DownloadRate float64 // bytes/sec
	Peers        int
	Seeds        int
}
