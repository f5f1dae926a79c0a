// =============================================================================
// pkg/stream/dispatcher.go - Connection Accept Loop and Request Handling
// =============================================================================
package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/textproto"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/ksuid"
	"golang.org/x/sync/semaphore"

	"seedstream/pkg/metrics"
)

// serve accepts connections until the listener is closed. Each connection is
// handled by a worker; at most opts.Workers run at once.
func (s *Server) serve(ctx context.Context, ln net.Listener, sem *semaphore.Weighted) {
	defer s.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.State() != StateListening || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("accept failed", slog.String("error", err.Error()))
			time.Sleep(10 * time.Millisecond)
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			conn.Close()
			return
		}
		if !s.track(conn, true) {
			sem.Release(1)
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer sem.Release(1)
			defer s.track(conn, false)
			s.handleConn(conn)
		}()
	}
}

// handleConn serves exactly one request and closes the connection.
func (s *Server) handleConn(conn net.Conn) {
	log := s.logger.With(
		slog.String("conn", ksuid.New().String()),
		slog.String("remote", conn.RemoteAddr().String()),
	)

	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()
	defer conn.Close()
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("panic while handling client",
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(s.opts.RequestTimeout))
	r := textproto.NewReader(bufio.NewReader(conn))
	w := bufio.NewWriterSize(conn, ChunkSize)

	status, sent, err := s.respond(r, w, log)
	if err == nil {
		err = w.Flush()
	}

	metrics.StreamRequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	metrics.StreamBytesTotal.Add(float64(sent))

	if err != nil {
		log.Debug("connection aborted", slog.Int("status", status), slog.Int64("sent", sent), slog.String("error", err.Error()))
		return
	}
	log.Debug("request served", slog.Int("status", status), slog.Int64("sent", sent))
}

// respond reads the request head and writes the matching response. It
// returns the status code sent and the number of body bytes copied.
func (s *Server) respond(r *textproto.Reader, w *bufio.Writer, log *slog.Logger) (int, int64, error) {
	line, err := r.ReadLine()
	if err != nil || !strings.HasPrefix(line, http.MethodGet) {
		return http.StatusBadRequest, 0, writeError(w, http.StatusBadRequest, "Bad Request")
	}

	rangeHeader := ""
	for {
		l, err := r.ReadLine()
		if err != nil || l == "" {
			break
		}
		name, value, ok := strings.Cut(l, ":")
		if ok && strings.EqualFold(strings.TrimSpace(name), "Range") {
			rangeHeader = strings.TrimSpace(value)
		}
	}

	t, total, err := s.resolveTarget()
	if err != nil {
		log.Warn("no file to stream", slog.String("error", err.Error()))
		return http.StatusNotFound, 0, writeError(w, http.StatusNotFound, "File not found")
	}

	if rangeHeader == "" {
		log.Debug("full request", slog.String("path", t.Path), slog.Int64("total", total))
		sent, err := writeFull(w, t, total)
		return http.StatusOK, sent, err
	}

	rg, err := ParseRange(rangeHeader, total)
	if err != nil {
		log.Debug("rejected range", slog.String("range", rangeHeader), slog.String("error", err.Error()))
		return http.StatusRequestedRangeNotSatisfiable, 0, writeError(w,
			http.StatusRequestedRangeNotSatisfiable, "Range Not Satisfiable",
			header{"Content-Range", fmt.Sprintf("bytes */%d", total)})
	}

	log.Debug("range request", slog.String("range", rg.ContentRange()))
	sent, err := writePartial(w, t, rg)
	return http.StatusPartialContent, sent, err
}

// resolveTarget snapshots the current target and its total length.
func (s *Server) resolveTarget() (*Target, int64, error) {
	t := s.target.Load()
	if t == nil {
		return nil, 0, ErrNoTarget
	}
	fi, err := os.Stat(t.Path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrNoTarget, err)
	}
	if !fi.Mode().IsRegular() {
		return nil, 0, fmt.Errorf("%w: %s is not a regular file", ErrNoTarget, t.Path)
	}
	total := t.Length
	if total <= 0 {
		total = fi.Size()
	}
	return t, total, nil
}
