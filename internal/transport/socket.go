//go:build !windows

// Package transport carries broker envelopes between the palette UI and the
// palette host process over a Unix domain socket.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// probeTimeout bounds the liveness check on an existing socket file.
const probeTimeout = 100 * time.Millisecond

// UnixSocket owns the host's listening socket file.
type UnixSocket struct {
	path     string
	listener net.Listener
	mu       sync.Mutex
}

// NewUnixSocket creates a socket handle for path. An empty path resolves to
// DefaultSocketPath.
func NewUnixSocket(path string) *UnixSocket {
	if path == "" {
		path = DefaultSocketPath()
	}
	return &UnixSocket{path: path}
}

// DefaultSocketPath returns the socket path in priority order:
//  1. $XDG_RUNTIME_DIR/palette/palette.sock
//  2. $TMPDIR/palette-$UID/palette.sock
//  3. /tmp/palette-$UID/palette.sock
func DefaultSocketPath() string {
	if xdgRuntime := os.Getenv("XDG_RUNTIME_DIR"); xdgRuntime != "" {
		return filepath.Join(xdgRuntime, "palette", "palette.sock")
	}

	uid := strconv.Itoa(os.Getuid())
	if tmpdir := os.Getenv("TMPDIR"); tmpdir != "" {
		return filepath.Join(tmpdir, "palette-"+uid, "palette.sock")
	}
	return filepath.Join("/tmp", "palette-"+uid, "palette.sock")
}

// Listen creates the parent directory (0700), removes a stale socket left by
// a crashed host, and listens with owner-only permissions (0600).
func (s *UnixSocket) Listen() (net.Listener, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}

	if err := s.cleanupStale(); err != nil {
		return nil, fmt.Errorf("failed to cleanup stale socket: %w", err)
	}

	listener, err := net.Listen("unix", s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on socket: %w", err)
	}

	if err := os.Chmod(s.path, 0600); err != nil {
		listener.Close()
		os.Remove(s.path)
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.listener = listener
	return listener, nil
}

// cleanupStale removes the socket file if nothing answers on it.
func (s *UnixSocket) cleanupStale() error {
	_, err := os.Stat(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat socket: %w", err)
	}

	conn, err := net.DialTimeout("unix", s.path, probeTimeout)
	if err == nil {
		conn.Close()
		return ErrHostRunning
	}

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}
	return nil
}

// DialContext connects to the socket.
func (s *UnixSocket) DialContext(ctx context.Context) (net.Conn, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrSocketNotFound, s.path)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to socket: %w", err)
	}
	return conn, nil
}

// Exists reports whether the socket file is present.
func (s *UnixSocket) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Close closes the listener and removes the socket file.
func (s *UnixSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, fmt.Errorf("failed to close listener: %w", err))
		}
		s.listener = nil
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("failed to remove socket: %w", err))
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Path returns the socket file path.
func (s *UnixSocket) Path() string {
	return s.path
}
