//go:build !windows

package host

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Acquire takes the lock without blocking and records the current PID.
func (l *InstanceLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	for attempt := 0; ; attempt++ {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
		if err != nil {
			return fmt.Errorf("failed to open lock file: %w", err)
		}

		err = unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			if err := writePID(f); err != nil {
				f.Close()
				return err
			}
			l.file = f
			return nil
		}

		pid := readPID(f)
		f.Close()
		if !errors.Is(err, unix.EWOULDBLOCK) {
			return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
		}
		if attempt > 0 || pid <= 0 || processAlive(pid) {
			return alreadyRunning(pid, l.path)
		}
		// Held by a dead process; start over with a fresh file.
		os.Remove(l.path)
	}
}

// Release unlocks and removes the lock file.
func (l *InstanceLock) Release() error {
	if l.file == nil {
		return nil
	}
	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("failed to close lock file: %w", err)
	}
	l.file = nil

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

func processAlive(pid int) bool {
	// Signal 0 probes for existence without delivering anything.
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
