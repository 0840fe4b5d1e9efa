package providers

import (
	"context"
	"fmt"

	"github.com/runger/palette/internal/extension"
)

// TabsProviderID is the id of the open-tabs provider.
const TabsProviderID = "tabs"

// Tabs searches the open tabs snapshot.
type Tabs struct {
	base
	tabs   *Collection
	opener Opener
}

var _ extension.Provider = (*Tabs)(nil)

// NewTabs creates the tabs provider over a tabs file.
func NewTabs(tabs *Collection, opener Opener) *Tabs {
	return &Tabs{
		base: base{
			id:          TabsProviderID,
			name:        "Tabs",
			description: "Switch between open tabs",
			icon:        "▭",
		},
		tabs:   tabs,
		opener: opener,
	}
}

// Commands implements extension.Provider.
func (p *Tabs) Commands() []extension.Command {
	return []extension.Command{searchCommand("Search Tabs", "t", "Search open tabs")}
}

// HandleSearch returns every open tab, the active one first.
func (p *Tabs) HandleSearch(_ context.Context, commandID string, _ extension.SearchParams) ([]extension.SearchResult, error) {
	if commandID != searchCommandID {
		return nil, p.unknownCommand(commandID)
	}

	entries, err := p.tabs.Load()
	if err != nil {
		return nil, err
	}

	results := make([]extension.SearchResult, 0, len(entries))
	for _, e := range entries {
		r := p.result(e)
		if e.Active {
			results = append([]extension.SearchResult{r}, results...)
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

func (p *Tabs) result(e Entry) extension.SearchResult {
	return extension.SearchResult{
		ID:          extension.ResultID(p.id, e.ID),
		Title:       e.Title,
		Description: e.URL,
		Icon:        p.icon,
		Type:        extension.TypeTab,
		Actions: []extension.Action{
			{ID: ActionSwitch, Label: "Switch to Tab", Shortcut: "enter", Primary: true},
			{ID: ActionClose, Label: "Close Tab", Shortcut: "ctrl+w"},
		},
		Metadata: map[string]any{MetaURL: e.URL},
	}
}

// HandleAction switches to or closes a tab.
func (p *Tabs) HandleAction(ctx context.Context, commandID string, params extension.ActionParams) (any, error) {
	if commandID != searchCommandID {
		return nil, p.unknownCommand(commandID)
	}
	id, err := nativeID(p.id, params.ResultID)
	if err != nil {
		return nil, err
	}

	switch params.ActionID {
	case ActionSwitch:
		var url string
		err := p.tabs.Update(func(entries []Entry) ([]Entry, error) {
			found := false
			for i := range entries {
				entries[i].Active = entries[i].ID == id
				if entries[i].Active {
					found = true
					url = entries[i].URL
				}
			}
			if !found {
				return nil, fmt.Errorf("tab %s not found", id)
			}
			return entries, nil
		})
		if err != nil {
			return nil, err
		}
		return nil, p.opener.Open(ctx, url)
	case ActionClose:
		found, err := p.tabs.Remove(id)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("tab %s not found", id)
		}
		return nil, nil
	default:
		return nil, p.unknownAction(params.ActionID)
	}
}
