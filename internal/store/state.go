package store

import "github.com/runger/palette/internal/extension"

// ActionsMenu is the secondary-actions sub-state of the selected result.
type ActionsMenu struct {
	Open          bool `json:"open"`
	SelectedIndex int  `json:"selectedIndex"`
}

// State is a snapshot of the palette. Slices are never modified in place
// once published, so snapshots can be shared.
type State struct {
	Open             bool                     `json:"open"`
	Query            string                   `json:"query"`
	Results          []extension.SearchResult `json:"results"`
	SelectedIndex    int                      `json:"selectedIndex"`
	Loading          bool                     `json:"loading"`
	Error            string                   `json:"error,omitempty"`
	ActiveProviderID string                   `json:"activeProviderId,omitempty"`
	ActiveCommandID  string                   `json:"activeCommandId,omitempty"`
	Commands         []extension.Command      `json:"commands"`
	ActionsMenu      ActionsMenu              `json:"actionsMenu"`
	Generation       uint64                   `json:"generation"`
}

// SelectedResult returns the result under the cursor.
func (s State) SelectedResult() (extension.SearchResult, bool) {
	if s.SelectedIndex < 0 || s.SelectedIndex >= len(s.Results) {
		return extension.SearchResult{}, false
	}
	return s.Results[s.SelectedIndex], true
}

// FindResult returns the result with id.
func (s State) FindResult(id string) (extension.SearchResult, bool) {
	for _, r := range s.Results {
		if r.ID == id {
			return r, true
		}
	}
	return extension.SearchResult{}, false
}

// SelectedSecondaryAction returns the highlighted entry of the open actions
// menu.
func (s State) SelectedSecondaryAction() (extension.Action, bool) {
	if !s.ActionsMenu.Open {
		return extension.Action{}, false
	}
	r, ok := s.SelectedResult()
	if !ok {
		return extension.Action{}, false
	}
	actions := r.SecondaryActions()
	if s.ActionsMenu.SelectedIndex < 0 || s.ActionsMenu.SelectedIndex >= len(actions) {
		return extension.Action{}, false
	}
	return actions[s.ActionsMenu.SelectedIndex], true
}

// Pinned reports whether searches are routed to a single command.
func (s State) Pinned() bool {
	return s.ActiveProviderID != ""
}

// clampIndex keeps i inside [0, n-1], or 0 when n is 0.
func clampIndex(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}

// wrapIndex maps i onto [0, n) circularly.
func wrapIndex(i, n int) int {
	if n == 0 {
		return 0
	}
	return ((i % n) + n) % n
}
