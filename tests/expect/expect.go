//go:build !windows

// Package expect drives the palette binaries in a pseudo-terminal using
// go-expect.
package expect

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"syscall"
	"testing"
	"time"

	expect "github.com/Netflix/go-expect"
	"github.com/stretchr/testify/require"

	"github.com/runger/palette/internal/providers"
)

// Key constants for special keys (ANSI escape sequences)
const (
	KeyUp    = "\x1b[A"
	KeyDown  = "\x1b[B"
	KeyEsc   = "\x1b"
	KeyEnter = "\r"
	KeyTab   = "\t"
	KeyCtrlC = "\x03"
	KeyCtrlY = "\x19"
)

// Session is one palette process attached to a pseudo-terminal. The
// process gets the pty as its controlling terminal so /dev/tty works.
type Session struct {
	Console *expect.Console
	Timeout time.Duration
	cmd     *exec.Cmd
}

// SessionOption configures a Session.
type SessionOption func(*sessionConfig)

type sessionConfig struct {
	timeout    time.Duration
	env        []string
	showOutput bool
}

// WithTimeout sets the default timeout for expect operations.
func WithTimeout(d time.Duration) SessionOption {
	return func(c *sessionConfig) {
		c.timeout = d
	}
}

// WithEnv adds environment variables to the process.
func WithEnv(env ...string) SessionOption {
	return func(c *sessionConfig) {
		c.env = append(c.env, env...)
	}
}

// WithOutput copies the terminal output to stdout for debugging.
func WithOutput(show bool) SessionOption {
	return func(c *sessionConfig) {
		c.showOutput = show
	}
}

// Start runs bin with args in a new pseudo-terminal.
func Start(bin string, args []string, opts ...SessionOption) (*Session, error) {
	cfg := &sessionConfig{timeout: 5 * time.Second}
	for _, opt := range opts {
		opt(cfg)
	}

	consoleOpts := []expect.ConsoleOpt{expect.WithDefaultTimeout(cfg.timeout)}
	if cfg.showOutput {
		consoleOpts = append(consoleOpts, expect.WithStdout(os.Stdout))
	}
	console, err := expect.NewConsole(consoleOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create console: %w", err)
	}

	cmd := exec.Command(bin, args...) //nolint:gosec // G204: bin is a test binary
	cmd.Stdin = console.Tty()
	cmd.Stdout = console.Tty()
	cmd.Stderr = console.Tty()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true, Setctty: true}
	cmd.Env = append(os.Environ(), cfg.env...)
	cmd.Env = append(cmd.Env, "TERM=xterm-256color", "COLUMNS=100", "LINES=30")

	if err := cmd.Start(); err != nil {
		console.Close()
		return nil, fmt.Errorf("failed to start %s: %w", bin, err)
	}

	return &Session{Console: console, Timeout: cfg.timeout, cmd: cmd}, nil
}

// Send sends text without a newline.
func (s *Session) Send(text string) error {
	_, err := s.Console.Send(text)
	return err
}

// SendKey sends a special key (use Key* constants).
func (s *Session) SendKey(key string) error {
	_, err := s.Console.Send(key)
	return err
}

// Expect waits for an exact string match in the output.
func (s *Session) Expect(str string) (string, error) {
	return s.Console.ExpectString(str)
}

// ExpectRegex waits for a regex pattern match in the output.
func (s *Session) ExpectRegex(pattern string) (string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid regex: %w", err)
	}
	return s.Console.Expect(expect.Regexp(re))
}

// Wait waits for the process to exit and returns its exit code.
func (s *Session) Wait() (int, error) {
	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()

	select {
	case err := <-done:
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		if err != nil {
			return -1, err
		}
		return 0, nil
	case <-time.After(s.Timeout):
		return -1, fmt.Errorf("process did not exit within %s", s.Timeout)
	}
}

// Close kills the process if it is still running and closes the pty.
func (s *Session) Close() error {
	if s.cmd != nil && s.cmd.Process != nil && s.cmd.ProcessState == nil {
		s.cmd.Process.Kill()
		s.cmd.Wait()
	}
	return s.Console.Close()
}

// Binary returns the path of a palette binary from $PALETTE_BIN_DIR or
// $PATH, skipping the test when it is missing.
func Binary(t *testing.T, name string) string {
	t.Helper()
	if dir := os.Getenv("PALETTE_BIN_DIR"); dir != "" {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not available, skipping", name)
	}
	return path
}

// SkipIfShort skips the test if running in short mode.
func SkipIfShort(t *testing.T, reason string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping in short mode: " + reason)
	}
}

// Home seeds an isolated XDG layout with tabs and bookmarks and returns
// the environment that points a palette process at it.
func Home(t *testing.T) []string {
	t.Helper()

	root := t.TempDir()
	dataDir := filepath.Join(root, "data", "palette")
	require.NoError(t, providers.NewCollection(filepath.Join(dataDir, "tabs.yaml")).Save([]providers.Entry{
		{ID: "mail", Title: "Inbox", URL: "https://mail.test", Active: true},
		{ID: "docs", Title: "Go Documentation", URL: "https://go.dev/doc"},
	}))
	require.NoError(t, providers.NewCollection(filepath.Join(dataDir, "bookmarks.yaml")).Save([]providers.Entry{
		{ID: "news", Title: "Hacker News", URL: "https://news.ycombinator.com"},
		{ID: "go", Title: "Go", URL: "https://go.dev"},
	}))

	runtimeDir, err := os.MkdirTemp("/tmp", "pale-")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(runtimeDir) })

	return []string{
		"XDG_CONFIG_HOME=" + filepath.Join(root, "config"),
		"XDG_DATA_HOME=" + filepath.Join(root, "data"),
		"XDG_CACHE_HOME=" + filepath.Join(root, "cache"),
		"XDG_RUNTIME_DIR=" + runtimeDir,
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
