package providers

import (
	"context"

	"github.com/runger/palette/internal/extension"
)

// TopSitesProviderID is the id of the top sites provider.
const TopSitesProviderID = "topsites"

const topSitesLimit = 20

// TopSites lists the most visited pages.
type TopSites struct {
	base
	visits VisitStore
	opener Opener
}

var _ extension.Provider = (*TopSites)(nil)

// NewTopSites creates the top sites provider.
func NewTopSites(visits VisitStore, opener Opener) *TopSites {
	return &TopSites{
		base: base{
			id:          TopSitesProviderID,
			name:        "Top Sites",
			description: "Frequently visited pages",
			icon:        "▲",
		},
		visits: visits,
		opener: opener,
	}
}

// Commands implements extension.Provider.
func (p *TopSites) Commands() []extension.Command {
	return []extension.Command{searchCommand("Top Sites", "top", "Search top sites")}
}

// HandleSearch returns the most visited pages.
func (p *TopSites) HandleSearch(ctx context.Context, commandID string, _ extension.SearchParams) ([]extension.SearchResult, error) {
	if commandID != searchCommandID {
		return nil, p.unknownCommand(commandID)
	}

	sites, err := p.visits.TopSites(ctx, topSitesLimit)
	if err != nil {
		return nil, err
	}

	results := make([]extension.SearchResult, 0, len(sites))
	for _, v := range sites {
		results = append(results, visitResult(p.id, p.icon, extension.TypeTopSite, v, []extension.Action{
			{ID: ActionOpen, Label: "Open Page", Shortcut: "enter", Primary: true},
		}))
	}
	return results, nil
}

// HandleAction opens a top site.
func (p *TopSites) HandleAction(ctx context.Context, commandID string, params extension.ActionParams) (any, error) {
	if commandID != searchCommandID {
		return nil, p.unknownCommand(commandID)
	}
	if params.ActionID != ActionOpen {
		return nil, p.unknownAction(params.ActionID)
	}
	return nil, openVisit(ctx, p.opener, p.visits, params)
}
