package host

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrAlreadyRunning is returned when another process holds the instance lock.
var ErrAlreadyRunning = errors.New("host already running")

// InstanceLock keeps a second host from serving the same socket. The lock
// file holds the owner's PID; a lock left by a dead process is taken over.
type InstanceLock struct {
	path string
	file *os.File
}

// NewInstanceLock returns an unacquired lock at path.
func NewInstanceLock(path string) *InstanceLock {
	return &InstanceLock{path: path}
}

// LockPath returns the lock file guarding socketPath.
func LockPath(socketPath string) string {
	return socketPath + ".lock"
}

// Path returns the lock file path.
func (l *InstanceLock) Path() string {
	return l.path
}

func alreadyRunning(pid int, path string) error {
	if pid > 0 {
		return fmt.Errorf("%w (PID %d), lock file: %s", ErrAlreadyRunning, pid, path)
	}
	return fmt.Errorf("%w, lock file: %s", ErrAlreadyRunning, path)
}

// writePID replaces the file contents with the current PID.
func writePID(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate lock file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return fmt.Errorf("failed to seek lock file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		return fmt.Errorf("failed to write PID to lock file: %w", err)
	}
	return f.Sync()
}

// readPID returns the PID recorded in f, or 0.
func readPID(f *os.File) int {
	if _, err := f.Seek(0, 0); err != nil {
		return 0
	}
	buf := make([]byte, 32)
	n, err := f.Read(buf)
	if err != nil || n == 0 {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(buf[:n])))
	if err != nil {
		return 0
	}
	return pid
}
