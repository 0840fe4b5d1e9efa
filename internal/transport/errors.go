package transport

import "errors"

var (
	// ErrHostRunning is returned by Listen when another host already answers on the socket.
	ErrHostRunning = errors.New("socket is active (another palette host may be running)")

	// ErrSocketNotFound is returned when dialing a socket file that does not exist.
	ErrSocketNotFound = errors.New("socket not found")

	// ErrClosed is returned by Post after the bridge endpoint is closed.
	ErrClosed = errors.New("transport closed")

	// ErrNoPeer is returned by Server.Post when no UI is connected.
	ErrNoPeer = errors.New("no connected peer")
)
