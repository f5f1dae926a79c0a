// =============================================================================
// cmd/seedstream/status.go - Notification Printer
// =============================================================================
package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"seedstream/pkg/session"
	"seedstream/pkg/utils"
)

// printNotifications renders session notifications until done is closed.
func printNotifications(w io.Writer, notes <-chan session.Notification, done <-chan struct{}) {
	ready := false
	for {
		select {
		case n := <-notes:
			ready = printNotification(w, n, ready)
		case <-done:
			// flush what the shutdown produced
			for {
				select {
				case n := <-notes:
					printNotification(w, n, ready)
				default:
					return
				}
			}
		}
	}
}

func printNotification(w io.Writer, n session.Notification, ready bool) bool {
	switch n.Kind {
	case session.NotifyProgress:
		switch n.Data {
		case "prepared":
			fmt.Fprintln(w, "🔎 Fetching torrent metadata...")
		case "started":
			fmt.Fprintf(w, "📦 %d file(s):\n", len(n.Files))
			for _, f := range n.Files {
				mark := ""
				if utils.IsVideoFile(f.Name) {
					mark = " 🎬"
				}
				fmt.Fprintf(w, "   [%d] %s (%s)%s\n", f.Index, f.Name, humanize.Bytes(uint64(f.Length)), mark)
			}
		}
	case session.NotifyReady:
		fmt.Fprintf(w, "\n✅ Stream ready: %s (%s)\n", n.FileName, humanize.Bytes(uint64(n.FileSize)))
		fmt.Fprintf(w, "🎬 Stream URL: %s\n\n", n.URL)
		return true
	case session.NotifyStatus:
		fmt.Fprintf(w, "\r📊 Progress: %.1f%% | Speed: %s/s | Peers: %d | Seeds: %d | %s",
			n.Progress*100,
			humanize.Bytes(uint64(n.DownloadRate)),
			n.Peers,
			n.Seeds,
			formatStreamStatus(ready, n.Buffer))
	case session.NotifyError:
		fmt.Fprintf(w, "\n❌ %s\n", n.Message)
	case session.NotifyStop:
		fmt.Fprintln(w, "\n⏹  Torrent stopped")
	}
	return ready
}

func formatStreamStatus(ready bool, buffer float64) string {
	if ready {
		return "State: 🟢 Stream Ready"
	}
	return fmt.Sprintf("State: 🟡 Buffering %.0f%%", buffer*100)
}
