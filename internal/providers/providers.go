// Package providers implements the built-in palette providers: palette
// commands, open tabs, bookmarks, visit history and top sites.
package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/runger/palette/internal/extension"
	"github.com/runger/palette/internal/storage"
)

// Sentinel errors returned by provider handlers.
var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrUnknownAction  = errors.New("unknown action")
	ErrMissingResult  = errors.New("action requires a result")
)

// Metadata keys set on provider results.
const (
	MetaURL        = "url"
	MetaVisitCount = "visitCount"
	MetaFolder     = "folder"
)

// Shared action ids.
const (
	ActionOpen   = "open"
	ActionCopy   = "copy"
	ActionDelete = "delete"
	ActionSwitch = "switch"
	ActionClose  = "close"
)

// searchCommandID is the local id of each provider's main search command.
const searchCommandID = "search"

// Opener performs host-native effects.
type Opener interface {
	Open(ctx context.Context, url string) error
	Copy(ctx context.Context, text string) error
}

// VisitStore is the storage subset the history-backed providers use.
type VisitStore interface {
	RecordVisit(ctx context.Context, url, title string) (*storage.Visit, error)
	QueryVisits(ctx context.Context, q storage.VisitQuery) ([]storage.Visit, error)
	TopSites(ctx context.Context, limit int) ([]storage.Visit, error)
	DeleteVisit(ctx context.Context, id string) error
	ClearVisits(ctx context.Context) (int64, error)
}

// WriterOpener reports effects as lines on a writer. It is what the CLI
// host uses when no browser is attached.
type WriterOpener struct {
	W io.Writer
}

// Open writes "open <url>".
func (o WriterOpener) Open(_ context.Context, url string) error {
	_, err := fmt.Fprintf(o.W, "open %s\n", url)
	return err
}

// Copy writes "copy <text>".
func (o WriterOpener) Copy(_ context.Context, text string) error {
	_, err := fmt.Fprintf(o.W, "copy %s\n", text)
	return err
}

// nativeID strips the "<provider>-" prefix from a result id.
func nativeID(providerID, resultID string) (string, error) {
	id, ok := strings.CutPrefix(resultID, providerID+"-")
	if !ok || id == "" {
		return "", fmt.Errorf("%w: %q does not belong to %s", ErrMissingResult, resultID, providerID)
	}
	return id, nil
}

// metaURL reads the url metadata carried back with an action request.
func metaURL(params extension.ActionParams) string {
	if params.Metadata == nil {
		return ""
	}
	s, _ := params.Metadata[MetaURL].(string)
	return s
}

// base carries the static parts every built-in provider shares.
type base struct {
	id          string
	name        string
	description string
	icon        string
}

func (b base) ID() string                       { return b.id }
func (b base) Name() string                     { return b.name }
func (b base) Description() string              { return b.description }
func (b base) Icon() string                     { return b.icon }
func (b base) Initialize(context.Context) error { return nil }
func (b base) Destroy(context.Context) error    { return nil }

func (b base) unknownCommand(commandID string) error {
	return fmt.Errorf("%w: %s.%s", ErrUnknownCommand, b.id, commandID)
}

func (b base) unknownAction(actionID string) error {
	return fmt.Errorf("%w: %s on %s", ErrUnknownAction, actionID, b.id)
}

func searchCommand(name, alias, placeholder string) extension.Command {
	return extension.Command{
		ID:          searchCommandID,
		Name:        name,
		Placeholder: placeholder,
		Kind:        extension.KindSearch,
		Aliases:     []string{alias},
	}
}
