//go:build windows

// Package transport carries broker envelopes between the palette UI and the
// palette host process over a Unix domain socket.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/user"
)

// ErrNotImplemented is returned on platforms without Unix socket support.
var ErrNotImplemented = errors.New("windows named pipe transport not implemented")

// UnixSocket is a stub on Windows.
type UnixSocket struct {
	path string
}

// NewUnixSocket creates a stub socket handle.
func NewUnixSocket(path string) *UnixSocket {
	if path == "" {
		path = DefaultSocketPath()
	}
	return &UnixSocket{path: path}
}

// DefaultSocketPath returns \\.\pipe\palette-<SID>.
func DefaultSocketPath() string {
	sid := "unknown"
	if u, err := user.Current(); err == nil {
		sid = u.Uid
	}
	return fmt.Sprintf(`\\.\pipe\palette-%s`, sid)
}

func (s *UnixSocket) Listen() (net.Listener, error) {
	return nil, fmt.Errorf("listen: %w", ErrNotImplemented)
}

func (s *UnixSocket) DialContext(context.Context) (net.Conn, error) {
	return nil, fmt.Errorf("dial: %w", ErrNotImplemented)
}

func (s *UnixSocket) Exists() bool { return false }

func (s *UnixSocket) Close() error { return nil }

// Path returns the pipe name.
func (s *UnixSocket) Path() string { return s.path }
