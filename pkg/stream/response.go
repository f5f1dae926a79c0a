// =============================================================================
// pkg/stream/response.go - HTTP/1.1 Response Writing
// =============================================================================
package stream

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

type header struct {
	name, value string
}

// writeHead writes the status line and headers. Every response closes the
// connection, so Connection: close is always appended.
func writeHead(w io.Writer, status int, headers ...header) error {
	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", status, http.StatusText(status))
	for _, h := range headers {
		b.WriteString(h.name)
		b.WriteString(": ")
		b.WriteString(h.value)
		b.WriteString("\r\n")
	}
	b.WriteString("Connection: close\r\n\r\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// writeFull sends 200 and the whole file.
func writeFull(w io.Writer, t *Target, total int64) (int64, error) {
	err := writeHead(w, http.StatusOK,
		header{"Content-Type", t.ContentType},
		header{"Content-Length", strconv.FormatInt(total, 10)},
		header{"Accept-Ranges", "bytes"},
	)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}
	return CopyRange(w, t.Path, 0, total-1)
}

// writePartial sends 206 and the bytes of r.
func writePartial(w io.Writer, t *Target, r Range) (int64, error) {
	err := writeHead(w, http.StatusPartialContent,
		header{"Content-Type", t.ContentType},
		header{"Content-Length", strconv.FormatInt(r.Length(), 10)},
		header{"Content-Range", r.ContentRange()},
		header{"Accept-Ranges", "bytes"},
	)
	if err != nil {
		return 0, err
	}
	return CopyRange(w, t.Path, r.Start, r.End)
}

// writeError sends a plain-text error with message as the body.
func writeError(w io.Writer, status int, message string, extra ...header) error {
	headers := append([]header{
		{"Content-Type", "text/plain"},
		{"Content-Length", strconv.Itoa(len(message))},
	}, extra...)
	if err := writeHead(w, status, headers...); err != nil {
		return err
	}
	_, err := io.WriteString(w, message)
	return err
}
