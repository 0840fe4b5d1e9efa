// Package extension defines the palette data model and the registry that
// lets providers contribute commands without the UI knowing how they work.
package extension

import "strings"

// CommandKind distinguishes commands that produce results from commands
// that run immediately.
type CommandKind string

const (
	KindSearch CommandKind = "search"
	KindAction CommandKind = "action"
)

// Result types with a fixed ranking priority. Providers may use other types.
const (
	TypeTab      = "tab"
	TypeHistory  = "history"
	TypeBookmark = "bookmark"
	TypeCommand  = "command"
	TypeTopSite  = "top-site"
)

// Command is a unit of functionality contributed by a provider.
//
// Providers declare commands with a local ID; the registry hands them out
// with ID fully qualified as "<provider>.<local>".
type Command struct {
	ID          string      `json:"id"`
	ProviderID  string      `json:"providerId"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Icon        string      `json:"icon,omitempty"`
	Placeholder string      `json:"placeholder,omitempty"`
	Kind        CommandKind `json:"kind"`
	Aliases     []string    `json:"aliases,omitempty"`

	// SelfDelimiting marks an alias that needs no separator after it,
	// such as ">" in ">reload".
	SelfDelimiting bool `json:"selfDelimiting,omitempty"`

	Enabled bool `json:"enabled"`
}

// LocalID returns the command id without its provider prefix.
func (c Command) LocalID() string {
	if c.ProviderID != "" {
		if rest, ok := strings.CutPrefix(c.ID, c.ProviderID+"."); ok {
			return rest
		}
	}
	return c.ID
}

// PrimaryAlias returns the first alias, or "" when the command has none.
func (c Command) PrimaryAlias() string {
	if len(c.Aliases) == 0 {
		return ""
	}
	return c.Aliases[0]
}

// IsSearch reports whether the command produces results.
func (c Command) IsSearch() bool {
	return c.Kind == KindSearch
}

// Action is something that can be done with a result.
type Action struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Shortcut string `json:"shortcut,omitempty"`
	Primary  bool   `json:"primary,omitempty"`
}

// SearchResult is one selectable row. ID is "<provider>-<nativeId>" and is
// unique across providers.
type SearchResult struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Icon        string         `json:"icon,omitempty"`
	Type        string         `json:"type"`
	Actions     []Action       `json:"actions,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// PrimaryAction returns the action marked primary, falling back to the
// first action.
func (r SearchResult) PrimaryAction() (Action, bool) {
	for _, a := range r.Actions {
		if a.Primary {
			return a, true
		}
	}
	if len(r.Actions) > 0 {
		return r.Actions[0], true
	}
	return Action{}, false
}

// SecondaryActions returns every action except the primary one.
func (r SearchResult) SecondaryActions() []Action {
	primary, ok := r.PrimaryAction()
	if !ok {
		return nil
	}
	out := make([]Action, 0, len(r.Actions)-1)
	for _, a := range r.Actions {
		if a.ID == primary.ID {
			continue
		}
		out = append(out, a)
	}
	return out
}

// ProviderOf returns the provider segment of a result id.
func ProviderOf(resultID string) string {
	provider, _, _ := strings.Cut(resultID, "-")
	return provider
}

// MetadataString returns metadata[key] when it is a string.
func (r SearchResult) MetadataString(key string) string {
	if r.Metadata == nil {
		return ""
	}
	s, _ := r.Metadata[key].(string)
	return s
}

// ResultID builds "<provider>-<nativeID>".
func ResultID(providerID, nativeID string) string {
	return providerID + "-" + nativeID
}

// QualifiedID builds "<provider>.<local>".
func QualifiedID(providerID, localID string) string {
	return providerID + "." + localID
}
