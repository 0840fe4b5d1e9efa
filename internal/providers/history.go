package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/runger/palette/internal/extension"
	"github.com/runger/palette/internal/storage"
)

// HistoryProviderID is the id of the visit history provider.
const HistoryProviderID = "history"

const (
	recentVisitLimit = 200
	matchVisitLimit  = 100
)

// History searches visited pages.
type History struct {
	base
	visits VisitStore
	opener Opener
}

var _ extension.Provider = (*History)(nil)

// NewHistory creates the history provider.
func NewHistory(visits VisitStore, opener Opener) *History {
	return &History{
		base: base{
			id:          HistoryProviderID,
			name:        "History",
			description: "Revisit pages from history",
			icon:        "↺",
		},
		visits: visits,
		opener: opener,
	}
}

// Commands implements extension.Provider.
func (p *History) Commands() []extension.Command {
	return []extension.Command{searchCommand("Search History", "h", "Search history")}
}

// HandleSearch returns recent visits plus older visits whose url or title
// contains the query.
func (p *History) HandleSearch(ctx context.Context, commandID string, params extension.SearchParams) ([]extension.SearchResult, error) {
	if commandID != searchCommandID {
		return nil, p.unknownCommand(commandID)
	}

	visits, err := p.visits.QueryVisits(ctx, storage.VisitQuery{Limit: recentVisitLimit})
	if err != nil {
		return nil, err
	}

	if q := strings.TrimSpace(params.Query); q != "" {
		matches, err := p.visits.QueryVisits(ctx, storage.VisitQuery{Substring: q, Limit: matchVisitLimit})
		if err != nil {
			return nil, err
		}
		visits = mergeVisits(visits, matches)
	}

	results := make([]extension.SearchResult, 0, len(visits))
	for _, v := range visits {
		results = append(results, visitResult(p.id, p.icon, extension.TypeHistory, v, []extension.Action{
			{ID: ActionOpen, Label: "Open Page", Shortcut: "enter", Primary: true},
			{ID: ActionDelete, Label: "Remove from History", Shortcut: "ctrl+d"},
		}))
	}
	return results, nil
}

// HandleAction opens or deletes a visit.
func (p *History) HandleAction(ctx context.Context, commandID string, params extension.ActionParams) (any, error) {
	if commandID != searchCommandID {
		return nil, p.unknownCommand(commandID)
	}
	id, err := nativeID(p.id, params.ResultID)
	if err != nil {
		return nil, err
	}

	switch params.ActionID {
	case ActionOpen:
		return nil, openVisit(ctx, p.opener, p.visits, params)
	case ActionDelete:
		return nil, p.visits.DeleteVisit(ctx, id)
	default:
		return nil, p.unknownAction(params.ActionID)
	}
}

func visitResult(providerID, icon, typ string, v storage.Visit, actions []extension.Action) extension.SearchResult {
	title := v.Title
	if title == "" {
		title = v.URL
	}
	return extension.SearchResult{
		ID:          extension.ResultID(providerID, v.ID),
		Title:       title,
		Description: v.URL,
		Icon:        icon,
		Type:        typ,
		Actions:     actions,
		Metadata:    map[string]any{MetaURL: v.URL, MetaVisitCount: v.VisitCount},
	}
}

func openVisit(ctx context.Context, opener Opener, visits VisitStore, params extension.ActionParams) error {
	url := metaURL(params)
	if url == "" {
		return fmt.Errorf("%w: %s has no url", ErrMissingResult, params.ResultID)
	}
	if err := opener.Open(ctx, url); err != nil {
		return err
	}
	_, err := visits.RecordVisit(ctx, url, "")
	return err
}

func mergeVisits(a, b []storage.Visit) []storage.Visit {
	seen := make(map[string]bool, len(a))
	for _, v := range a {
		seen[v.ID] = true
	}
	for _, v := range b {
		if !seen[v.ID] {
			seen[v.ID] = true
			a = append(a, v)
		}
	}
	return a
}
