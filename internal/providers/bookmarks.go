package providers

import (
	"context"
	"fmt"

	"github.com/runger/palette/internal/extension"
)

// BookmarksProviderID is the id of the bookmarks provider.
const BookmarksProviderID = "bookmarks"

// Bookmarks searches a bookmarks file. Opening a bookmark records a visit.
type Bookmarks struct {
	base
	bookmarks *Collection
	visits    VisitStore
	opener    Opener
}

var _ extension.Provider = (*Bookmarks)(nil)

// NewBookmarks creates the bookmarks provider.
func NewBookmarks(bookmarks *Collection, visits VisitStore, opener Opener) *Bookmarks {
	return &Bookmarks{
		base: base{
			id:          BookmarksProviderID,
			name:        "Bookmarks",
			description: "Open saved bookmarks",
			icon:        "★",
		},
		bookmarks: bookmarks,
		visits:    visits,
		opener:    opener,
	}
}

// Commands implements extension.Provider.
func (p *Bookmarks) Commands() []extension.Command {
	return []extension.Command{searchCommand("Search Bookmarks", "b", "Search bookmarks")}
}

// HandleSearch returns every bookmark.
func (p *Bookmarks) HandleSearch(_ context.Context, commandID string, _ extension.SearchParams) ([]extension.SearchResult, error) {
	if commandID != searchCommandID {
		return nil, p.unknownCommand(commandID)
	}

	entries, err := p.bookmarks.Load()
	if err != nil {
		return nil, err
	}

	results := make([]extension.SearchResult, 0, len(entries))
	for _, e := range entries {
		desc := e.URL
		if e.Folder != "" {
			desc = e.Folder + " · " + e.URL
		}
		results = append(results, extension.SearchResult{
			ID:          extension.ResultID(p.id, e.ID),
			Title:       e.Title,
			Description: desc,
			Icon:        p.icon,
			Type:        extension.TypeBookmark,
			Actions: []extension.Action{
				{ID: ActionOpen, Label: "Open Bookmark", Shortcut: "enter", Primary: true},
				{ID: ActionCopy, Label: "Copy URL", Shortcut: "ctrl+y"},
				{ID: ActionDelete, Label: "Delete Bookmark", Shortcut: "ctrl+d"},
			},
			Metadata: map[string]any{MetaURL: e.URL, MetaFolder: e.Folder},
		})
	}
	return results, nil
}

// HandleAction opens, copies or deletes a bookmark.
func (p *Bookmarks) HandleAction(ctx context.Context, commandID string, params extension.ActionParams) (any, error) {
	if commandID != searchCommandID {
		return nil, p.unknownCommand(commandID)
	}
	id, err := nativeID(p.id, params.ResultID)
	if err != nil {
		return nil, err
	}

	if params.ActionID == ActionDelete {
		found, err := p.bookmarks.Remove(id)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("bookmark %s not found", id)
		}
		return nil, nil
	}

	entry, found, err := p.bookmarks.Find(id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("bookmark %s not found", id)
	}

	switch params.ActionID {
	case ActionOpen:
		if err := p.opener.Open(ctx, entry.URL); err != nil {
			return nil, err
		}
		_, err := p.visits.RecordVisit(ctx, entry.URL, entry.Title)
		return nil, err
	case ActionCopy:
		return nil, p.opener.Copy(ctx, entry.URL)
	default:
		return nil, p.unknownAction(params.ActionID)
	}
}
