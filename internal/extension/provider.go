package extension

import "context"

// SearchParams carries a search request to a provider.
type SearchParams struct {
	Query string
}

// ActionParams carries an action request to a provider. ResultID and
// Metadata are empty for action commands.
type ActionParams struct {
	ActionID string
	ResultID string
	Metadata map[string]any
}

// Provider is a source of commands and results. Command IDs returned by
// Commands are local to the provider.
//
// HandleSearch and HandleAction report failure by returning an error; the
// registry turns it into a failed broker response.
type Provider interface {
	ID() string
	Name() string
	Description() string
	Icon() string
	Commands() []Command

	Initialize(ctx context.Context) error
	Destroy(ctx context.Context) error

	HandleSearch(ctx context.Context, commandID string, params SearchParams) ([]SearchResult, error)
	HandleAction(ctx context.Context, commandID string, params ActionParams) (any, error)
}

// Settings decides whether a command is enabled. Unknown commands are
// enabled.
type Settings interface {
	IsEnabled(ctx context.Context, commandID string) (bool, error)
}

// Catalog lists the commands currently available to the user.
type Catalog interface {
	EnabledCommands(ctx context.Context) ([]Command, error)
}
