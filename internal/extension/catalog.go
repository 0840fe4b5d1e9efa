package extension

import (
	"context"
	"fmt"

	"github.com/runger/palette/internal/broker"
)

// Metadata keys set on synthetic command results.
const (
	MetaKind       = "kind"
	MetaCommandID  = "commandId"
	MetaProviderID = "providerId"
)

// ActionExecute is the primary action of a command result.
const ActionExecute = "execute"

// CommandResult renders c as a selectable result. Choosing it either
// enters the command's search mode or runs the command.
func CommandResult(c Command) SearchResult {
	desc := c.Description
	if alias := c.PrimaryAlias(); alias != "" && c.IsSearch() {
		if desc != "" {
			desc += " "
		}
		desc += "(" + alias + ")"
	}
	return SearchResult{
		ID:          "command-" + c.ID,
		Title:       c.Name,
		Description: desc,
		Icon:        c.Icon,
		Type:        TypeCommand,
		Actions: []Action{
			{ID: ActionExecute, Label: "Run", Shortcut: "enter", Primary: true},
		},
		Metadata: map[string]any{
			MetaKind:       string(c.Kind),
			MetaCommandID:  c.LocalID(),
			MetaProviderID: c.ProviderID,
		},
	}
}

// CatalogRequester is the broker call RemoteCatalog needs.
type CatalogRequester interface {
	SendCatalogRequest(ctx context.Context) (*broker.Response, error)
}

// RemoteCatalog reads the enabled command list from a registry in another
// process.
type RemoteCatalog struct {
	requester CatalogRequester
}

// NewRemoteCatalog creates a catalog backed by requester.
func NewRemoteCatalog(requester CatalogRequester) *RemoteCatalog {
	return &RemoteCatalog{requester: requester}
}

// EnabledCommands asks the host for its enabled commands.
func (c *RemoteCatalog) EnabledCommands(ctx context.Context) ([]Command, error) {
	resp, err := c.requester.SendCatalogRequest(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog request: %w", err)
	}
	if err := resp.Err(); err != nil {
		return nil, fmt.Errorf("catalog request: %w", err)
	}
	var cmds []Command
	if err := resp.Decode(&cmds); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return cmds, nil
}

// Ensure RemoteCatalog implements Catalog.
var _ Catalog = (*RemoteCatalog)(nil)
