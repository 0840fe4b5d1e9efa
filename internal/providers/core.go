package providers

import (
	"context"

	"github.com/runger/palette/internal/extension"
)

// CoreProviderID is the id of the palette's own provider.
const CoreProviderID = "core"

const (
	coreCommandsID     = "commands"
	coreClearHistoryID = "clear-history"
)

// Core lists the palette's commands under ">" and owns palette-wide
// actions.
type Core struct {
	base
	catalog extension.Catalog
	visits  VisitStore
}

var _ extension.Provider = (*Core)(nil)

// NewCore creates the core provider. catalog is usually the registry the
// provider is registered with.
func NewCore(catalog extension.Catalog, visits VisitStore) *Core {
	return &Core{
		base: base{
			id:          CoreProviderID,
			name:        "Palette",
			description: "Palette commands",
			icon:        "⌘",
		},
		catalog: catalog,
		visits:  visits,
	}
}

// Commands implements extension.Provider.
func (p *Core) Commands() []extension.Command {
	return []extension.Command{
		{
			ID:             coreCommandsID,
			Name:           "Commands",
			Description:    "Run a palette command",
			Placeholder:    "Type a command",
			Kind:           extension.KindSearch,
			Aliases:        []string{">"},
			SelfDelimiting: true,
		},
		{
			ID:          coreClearHistoryID,
			Name:        "Clear History",
			Description: "Forget every visited page",
			Kind:        extension.KindAction,
		},
	}
}

// HandleSearch lists every enabled command except the listing itself.
func (p *Core) HandleSearch(ctx context.Context, commandID string, _ extension.SearchParams) ([]extension.SearchResult, error) {
	if commandID != coreCommandsID {
		return nil, p.unknownCommand(commandID)
	}

	commands, err := p.catalog.EnabledCommands(ctx)
	if err != nil {
		return nil, err
	}

	self := extension.QualifiedID(p.id, coreCommandsID)
	results := make([]extension.SearchResult, 0, len(commands))
	for _, c := range commands {
		if c.ID == self {
			continue
		}
		results = append(results, extension.CommandResult(c))
	}
	return results, nil
}

// HandleAction runs a core action command.
func (p *Core) HandleAction(ctx context.Context, commandID string, params extension.ActionParams) (any, error) {
	if commandID != coreClearHistoryID {
		return nil, p.unknownCommand(commandID)
	}
	if params.ActionID != extension.ActionExecute {
		return nil, p.unknownAction(params.ActionID)
	}
	removed, err := p.visits.ClearVisits(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]int64{"removed": removed}, nil
}
