//go:build windows

package host

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/windows"
)

const stillActive = 259

// Acquire creates the lock file exclusively and records the current PID.
func (l *InstanceLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	for attempt := 0; ; attempt++ {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
		if err == nil {
			if err := writePID(f); err != nil {
				f.Close()
				os.Remove(l.path)
				return err
			}
			l.file = f
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
		}

		pid := 0
		if held, openErr := os.Open(l.path); openErr == nil {
			pid = readPID(held)
			held.Close()
		}
		if attempt > 0 || pid <= 0 || processAlive(pid) {
			return alreadyRunning(pid, l.path)
		}
		os.Remove(l.path)
	}
}

// Release closes and removes the lock file.
func (l *InstanceLock) Release() error {
	if l.file == nil {
		return nil
	}
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
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(h)

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return false
	}
	return code == stillActive
}
