// =============================================================================
// pkg/stream/streamer.go - Chunked File Range Copy
// =============================================================================
package stream

import (
	"fmt"
	"io"
	"os"
)

// ChunkSize is the copy buffer used for every response body.
const ChunkSize = 8 * 1024

// CopyRange copies bytes [start, end] of the file at path to dst. The file may
// still be growing: reaching physical EOF before end is not an error, the
// copy just stops short.
func CopyRange(dst io.Writer, path string, start, end int64) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seek to %d: %w", start, err)
	}

	buf := make([]byte, ChunkSize)
	remaining := end - start + 1
	var written int64

	for remaining > 0 {
		n := int64(len(buf))
		if remaining < n {
			n = remaining
		}
		nr, readErr := f.Read(buf[:n])
		if nr > 0 {
			nw, writeErr := dst.Write(buf[:nr])
			written += int64(nw)
			if writeErr != nil {
				return written, writeErr
			}
			remaining -= int64(nw)
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
	return written, nil
}
