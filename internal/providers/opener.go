package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/google/shlex"
)

// ErrEmptyCommand is returned for an opener command line with no words.
var ErrEmptyCommand = errors.New("command produced empty argv")

// CommandOpener runs external programs for effects. The URL is appended as
// the last argument of the open command; copied text is written to the
// copy command's stdin. A missing command falls back to Fallback.
type CommandOpener struct {
	OpenArgv []string
	CopyArgv []string
	Fallback Opener
}

// NewCommandOpener splits the shell-quoted command lines. Either may be
// empty. fallback handles whichever is empty.
func NewCommandOpener(openCmd, copyCmd string, fallback Opener) (*CommandOpener, error) {
	openArgv, err := splitCommand(openCmd)
	if err != nil {
		return nil, fmt.Errorf("open command: %w", err)
	}
	copyArgv, err := splitCommand(copyCmd)
	if err != nil {
		return nil, fmt.Errorf("copy command: %w", err)
	}
	return &CommandOpener{OpenArgv: openArgv, CopyArgv: copyArgv, Fallback: fallback}, nil
}

func splitCommand(line string) ([]string, error) {
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}
	argv, err := shlex.Split(line)
	if err != nil {
		return nil, fmt.Errorf("splitting command: %w", err)
	}
	if len(argv) == 0 {
		return nil, ErrEmptyCommand
	}
	return argv, nil
}

// Open runs the open command with url.
func (o *CommandOpener) Open(ctx context.Context, url string) error {
	if len(o.OpenArgv) == 0 {
		return o.fallback().Open(ctx, url)
	}
	args := append(append([]string(nil), o.OpenArgv[1:]...), url)
	return run(exec.CommandContext(ctx, o.OpenArgv[0], args...), nil)
}

// Copy pipes text into the copy command.
func (o *CommandOpener) Copy(ctx context.Context, text string) error {
	if len(o.CopyArgv) == 0 {
		return o.fallback().Copy(ctx, text)
	}
	return run(exec.CommandContext(ctx, o.CopyArgv[0], o.CopyArgv[1:]...), strings.NewReader(text))
}

func (o *CommandOpener) fallback() Opener {
	if o.Fallback == nil {
		return WriterOpener{W: io.Discard}
	}
	return o.Fallback
}

func run(cmd *exec.Cmd, stdin io.Reader) error {
	var stderr bytes.Buffer
	cmd.Stdin = stdin
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", cmd.Args[0], err, msg)
		}
		return fmt.Errorf("%s: %w", cmd.Args[0], err)
	}
	return nil
}
