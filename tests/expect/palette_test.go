//go:build !windows

package expect

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startPalette(t *testing.T, env []string, args ...string) *Session {
	t.Helper()
	SkipIfShort(t, "interactive palette")
	bin := Binary(t, "palette")

	s, err := Start(bin, args, WithEnv(env...), WithTimeout(10*time.Second))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPalette_ShowsTabsAndEscCancels(t *testing.T) {
	s := startPalette(t, Home(t))

	_, err := s.Expect("Inbox")
	require.NoError(t, err)
	_, err = s.Expect("Go Documentation")
	require.NoError(t, err)

	require.NoError(t, s.SendKey(KeyEsc))
	code, err := s.Wait()
	require.NoError(t, err)
	assert.Equal(t, 130, code)
}

func TestPalette_AliasSearchAndOpen(t *testing.T) {
	s := startPalette(t, Home(t))

	_, err := s.Expect("Inbox")
	require.NoError(t, err)

	require.NoError(t, s.Send("b hacker"))
	_, err = s.Expect("Hacker News")
	require.NoError(t, err)
	_, err = s.Expect("Search Bookmarks")
	require.NoError(t, err)

	require.NoError(t, s.SendKey(KeyEnter))
	_, err = s.Expect("open https://news.ycombinator.com")
	require.NoError(t, err)

	code, err := s.Wait()
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestPalette_ActionsMenu(t *testing.T) {
	s := startPalette(t, Home(t), "b", "hacker")

	_, err := s.Expect("Hacker News")
	require.NoError(t, err)

	require.NoError(t, s.SendKey(KeyTab))
	_, err = s.Expect("Copy URL")
	require.NoError(t, err)

	require.NoError(t, s.SendKey(KeyEnter))
	_, err = s.Expect("copy https://news.ycombinator.com")
	require.NoError(t, err)

	code, err := s.Wait()
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestPalette_CommandList(t *testing.T) {
	s := startPalette(t, Home(t))

	_, err := s.Expect("Inbox")
	require.NoError(t, err)

	require.NoError(t, s.Send(">"))
	_, err = s.Expect("Clear History")
	require.NoError(t, err)

	require.NoError(t, s.SendKey(KeyCtrlC))
	code, err := s.Wait()
	require.NoError(t, err)
	assert.Equal(t, 130, code)
}

func TestSearch_NonInteractive(t *testing.T) {
	s := startPalette(t, Home(t), "search", "go", "docs")

	_, err := s.Expect("Go Documentation")
	require.NoError(t, err)

	code, err := s.Wait()
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestRemote_AttachesToHost(t *testing.T) {
	SkipIfShort(t, "host process")
	env := Home(t)
	hostBin := Binary(t, "paletted")

	host, err := Start(hostBin, nil, WithEnv(env...), WithTimeout(10*time.Second))
	require.NoError(t, err)
	t.Cleanup(func() { host.Close() })

	// The socket lives in XDG_RUNTIME_DIR/palette.
	var socket string
	for _, kv := range env {
		if dir, ok := strings.CutPrefix(kv, "XDG_RUNTIME_DIR="); ok {
			socket = filepath.Join(dir, "palette", "palette.sock")
		}
	}
	require.Eventually(t, func() bool {
		return fileExists(socket)
	}, 5*time.Second, 50*time.Millisecond)

	s := startPalette(t, env, "--remote", "search", "inbox")
	_, err = s.Expect("Inbox")
	require.NoError(t, err)

	code, err := s.Wait()
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}
