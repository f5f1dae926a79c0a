// =============================================================================
// pkg/session/notification.go - Consumer Notifications
// =============================================================================
package session

import "seedstream/pkg/api"

// NotificationKind names the event a consumer receives.
type NotificationKind int

const (
	NotifyProgress NotificationKind = iota // lifecycle milestones: prepared, started
	NotifyStatus                           // periodic transfer status
	NotifyReady
	NotifyError
	NotifyStop
)

func (k NotificationKind) String() string {
	switch k {
	case NotifyProgress:
		return "progress"
	case NotifyStatus:
		return "status"
	case NotifyReady:
		return "ready"
	case NotifyError:
		return "error"
	case NotifyStop:
		return "stop"
	}
	return "unknown"
}

// Notification is emitted per session. Only the fields relevant to Kind are set.
type Notification struct {
	ID   string
	Kind NotificationKind

	// NotifyProgress: "prepared" or "started"; NotifyStop: "stopped"
	Data  string
	Files []api.FileEntry // absolute paths, set with Data "started"

	// NotifyReady
	URL      string
	FileName string
	FileSize int64

	// NotifyStatus
	Progress     float64 // selected file, piece based
	Buffer       float64
	DownloadRate float64
	Peers        int
	Seeds        int

	// NotifyError
	Message string
}
