package stream

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFixture(t *testing.T, size int) (string, []byte) {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i * 7 % 251)
	}
	path := filepath.Join(t.TempDir(), "movie.mkv")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path, data
}

// countingWriter records the size of every Write call.
type countingWriter struct {
	bytes.Buffer
	writes []int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes = append(w.writes, len(p))
	return w.Buffer.Write(p)
}

func TestCopyRangeChunks(t *testing.T) {
	path, data := writeFixture(t, 3*ChunkSize+100)

	var w countingWriter
	n, err := CopyRange(&w, path, 10, int64(len(data)-1))
	if err != nil {
		t.Fatalf("CopyRange: %v", err)
	}
	if n != int64(len(data)-10) || !bytes.Equal(w.Bytes(), data[10:]) {
		t.Fatalf("copied %d bytes, body mismatch", n)
	}
	for _, size := range w.writes {
		if size > ChunkSize {
			t.Fatalf("write of %d bytes exceeds chunk size", size)
		}
	}
}

func TestCopyRangeStopsAtEOF(t *testing.T) {
	path, data := writeFixture(t, 1000)

	var buf bytes.Buffer
	n, err := CopyRange(&buf, path, 900, 4999)
	if err != nil {
		t.Fatalf("short file must not be an error: %v", err)
	}
	if n != 100 || !bytes.Equal(buf.Bytes(), data[900:]) {
		t.Fatalf("expected the 100 available bytes, got %d", n)
	}

	buf.Reset()
	n, err = CopyRange(&buf, path, 2000, 2999)
	if err != nil || n != 0 {
		t.Fatalf("start past EOF: expected 0 bytes and no error, got %d, %v", n, err)
	}
}

func TestCopyRangeMissingFile(t *testing.T) {
	_, err := CopyRange(&bytes.Buffer{}, filepath.Join(t.TempDir(), "missing"), 0, 10)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestCopyRangeWriteError(t *testing.T) {
	path, _ := writeFixture(t, 100)
	if _, err := CopyRange(failingWriter{}, path, 0, 99); err == nil {
		t.Fatalf("expected the write error to surface")
	}
}
