package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/palette/internal/broker"
	"github.com/runger/palette/internal/extension"
	"github.com/runger/palette/internal/search"
)

// --- Fakes ---

type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	fn      func(ctx context.Context, query string) (search.Outcome, error)
}

func (f *fakeSearcher) Search(ctx context.Context, query string) (search.Outcome, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	fn := f.fn
	f.mu.Unlock()
	if fn == nil {
		return search.Outcome{Results: []extension.SearchResult{}}, nil
	}
	return fn(ctx, query)
}

func (f *fakeSearcher) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type actionCall struct {
	providerID, commandID, actionID, resultID string
	metadata                                  map[string]any
}

type fakeRequester struct {
	mu        sync.Mutex
	initial   []extension.SearchResult
	initErr   error
	actionErr string
	actions   []actionCall
}

func (f *fakeRequester) SendSearchRequest(_ context.Context, _, _, _ string) (*broker.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.initErr != nil {
		return nil, f.initErr
	}
	data, _ := json.Marshal(f.initial)
	return &broker.Response{Result: broker.Result{Success: true, Data: data}}, nil
}

func (f *fakeRequester) SendActionRequest(_ context.Context, providerID, commandID, actionID, resultID string, metadata map[string]any) (*broker.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, actionCall{providerID, commandID, actionID, resultID, metadata})
	if f.actionErr != "" {
		return &broker.Response{Result: broker.Result{Success: false, Error: f.actionErr, Code: broker.CodeProviderExecution}}, nil
	}
	return &broker.Response{Result: broker.Result{Success: true}}, nil
}

func (f *fakeRequester) recordedActions() []actionCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]actionCall(nil), f.actions...)
}

type staticCatalog struct {
	commands []extension.Command
	err      error
}

func (c staticCatalog) EnabledCommands(context.Context) ([]extension.Command, error) {
	return c.commands, c.err
}

var testCommands = []extension.Command{
	{ID: "core.commands", ProviderID: "core", Name: "Commands", Kind: extension.KindSearch, Aliases: []string{">"}, SelfDelimiting: true},
	{ID: "core.clear-history", ProviderID: "core", Name: "Clear History", Kind: extension.KindAction},
	{ID: "tabs.search", ProviderID: "tabs", Name: "Search Tabs", Kind: extension.KindSearch, Aliases: []string{"t"}},
	{ID: "bookmarks.search", ProviderID: "bookmarks", Name: "Search Bookmarks", Kind: extension.KindSearch, Aliases: []string{"b"}},
}

func tabResult(id string, actions ...extension.Action) extension.SearchResult {
	return extension.SearchResult{ID: id, Title: id, Type: extension.TypeTab, Actions: actions}
}

func resultIDs(results []extension.SearchResult) []string {
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	return ids
}

func newTestStore(t *testing.T, searcher *fakeSearcher, req *fakeRequester, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithDebounce(10 * time.Millisecond)}, opts...)
	s := New(searcher, req, staticCatalog{commands: testCommands}, opts...)
	t.Cleanup(s.Shutdown)
	return s
}

// openWith opens the store with results as the initial list.
func openWith(t *testing.T, results ...extension.SearchResult) (*Store, *fakeSearcher, *fakeRequester) {
	t.Helper()
	searcher := &fakeSearcher{}
	req := &fakeRequester{initial: results}
	s := newTestStore(t, searcher, req)
	require.NoError(t, s.Open(context.Background()))
	return s, searcher, req
}

// --- Open / Close ---

func TestOpen_LoadsCommandsAndInitialResults(t *testing.T) {
	s, _, _ := openWith(t, tabResult("tabs-1"), tabResult("tabs-2"))

	st := s.State()
	assert.True(t, st.Open)
	assert.False(t, st.Loading)
	assert.Empty(t, st.Error)
	assert.Len(t, st.Commands, len(testCommands))
	assert.Len(t, st.Results, 2)
	assert.Equal(t, 0, st.SelectedIndex)
}

func TestOpen_InitialLoadFailureStoresError(t *testing.T) {
	req := &fakeRequester{initErr: broker.ErrTimeout}
	s := newTestStore(t, &fakeSearcher{}, req)

	err := s.Open(context.Background())
	require.ErrorIs(t, err, broker.ErrTimeout)

	st := s.State()
	assert.True(t, st.Open)
	assert.False(t, st.Loading)
	assert.Contains(t, st.Error, "timed out")
	assert.NotNil(t, st.Results)
	assert.Empty(t, st.Results)
	assert.Empty(t, st.ActiveProviderID)
	assert.Empty(t, st.ActiveCommandID)
}

func TestClose_ResetsEverything(t *testing.T) {
	s, _, _ := openWith(t, tabResult("tabs-1", extension.Action{ID: "switch"}, extension.Action{ID: "close"}))
	require.True(t, s.OpenActionsMenu())
	s.SetQuery("abc")

	before := s.State().Generation
	s.Close()

	st := s.State()
	assert.False(t, st.Open)
	assert.Empty(t, st.Query)
	assert.Empty(t, st.Results)
	assert.False(t, st.ActionsMenu.Open)
	assert.Greater(t, st.Generation, before)
	assert.False(t, s.debouncer.Pending())
}

// --- Selection ---

func TestSetSelectedIndex_EmptyResults(t *testing.T) {
	s, _, _ := openWith(t)
	for _, i := range []int{-3, 0, 5} {
		s.SetSelectedIndex(i)
		assert.Equal(t, 0, s.State().SelectedIndex)
	}
}

func TestSetSelectedIndex_Clamps(t *testing.T) {
	s, _, _ := openWith(t, tabResult("tabs-1"), tabResult("tabs-2"), tabResult("tabs-3"))

	tests := []struct {
		in, want int
	}{
		{in: -1, want: 0},
		{in: 1, want: 1},
		{in: 2, want: 2},
		{in: 10, want: 2},
	}
	for _, tt := range tests {
		s.SetSelectedIndex(tt.in)
		assert.Equal(t, tt.want, s.State().SelectedIndex, "SetSelectedIndex(%d)", tt.in)
	}

	s.SetSelectedIndex(0)
	s.MoveSelection(1)
	s.MoveSelection(5)
	assert.Equal(t, 2, s.State().SelectedIndex)
	s.MoveSelection(-7)
	assert.Equal(t, 0, s.State().SelectedIndex)
}

// --- Actions menu ---

func TestActionsMenu_Wraps(t *testing.T) {
	s, _, _ := openWith(t, tabResult("tabs-1",
		extension.Action{ID: "switch", Primary: true},
		extension.Action{ID: "close"},
		extension.Action{ID: "pin"},
		extension.Action{ID: "copy"},
	))

	require.True(t, s.OpenActionsMenu())
	assert.Equal(t, 0, s.State().ActionsMenu.SelectedIndex)

	s.SetActionsMenuSelectedIndex(-1)
	assert.Equal(t, 2, s.State().ActionsMenu.SelectedIndex)
	a, ok := s.SelectedSecondaryAction()
	require.True(t, ok)
	assert.Equal(t, "copy", a.ID)

	s.SetActionsMenuSelectedIndex(3)
	assert.Equal(t, 0, s.State().ActionsMenu.SelectedIndex)
	a, _ = s.SelectedSecondaryAction()
	assert.Equal(t, "close", a.ID)
}

func TestActionsMenu_RequiresSecondaryActions(t *testing.T) {
	s, _, _ := openWith(t, tabResult("tabs-1", extension.Action{ID: "switch", Primary: true}))

	assert.False(t, s.OpenActionsMenu())
	assert.False(t, s.State().ActionsMenu.Open)
	assert.False(t, s.ToggleActionsMenu())
}

func TestActionsMenu_ClosedBySelectionChange(t *testing.T) {
	s, _, _ := openWith(t,
		tabResult("tabs-1", extension.Action{ID: "switch"}, extension.Action{ID: "close"}),
		tabResult("tabs-2", extension.Action{ID: "switch"}, extension.Action{ID: "close"}),
	)

	assert.True(t, s.ToggleActionsMenu())
	s.SetSelectedIndex(1)
	assert.False(t, s.State().ActionsMenu.Open)

	assert.True(t, s.ToggleActionsMenu())
	assert.False(t, s.ToggleActionsMenu())
}

// --- Searching ---

func TestSetQuery_Debounces(t *testing.T) {
	searcher := &fakeSearcher{}
	s := newTestStore(t, searcher, &fakeRequester{})

	for _, q := range []string{"g", "gm", "gma", "gmail"} {
		s.SetQuery(q)
	}
	assert.Equal(t, "gmail", s.State().Query)

	require.Eventually(t, func() bool { return len(searcher.recorded()) == 1 }, time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, []string{"gmail"}, searcher.recorded())
}

func TestSetQuery_SameQueryIsIgnored(t *testing.T) {
	searcher := &fakeSearcher{}
	s := newTestStore(t, searcher, &fakeRequester{})

	s.SetQuery("gmail")
	require.Eventually(t, func() bool { return len(searcher.recorded()) == 1 }, time.Second, time.Millisecond)

	s.SetQuery("gmail")
	time.Sleep(30 * time.Millisecond)
	assert.Len(t, searcher.recorded(), 1)
}

func TestPerformSearch_AppliesOutcome(t *testing.T) {
	searcher := &fakeSearcher{fn: func(context.Context, string) (search.Outcome, error) {
		return search.Outcome{
			Results:          []extension.SearchResult{tabResult("tabs-9")},
			ActiveProviderID: "tabs",
			ActiveCommandID:  "search",
		}, nil
	}}
	s := newTestStore(t, searcher, &fakeRequester{})

	require.NoError(t, s.PerformSearch(context.Background(), "t example"))
	st := s.State()
	assert.False(t, st.Loading)
	assert.Equal(t, "tabs", st.ActiveProviderID)
	assert.Equal(t, "search", st.ActiveCommandID)
	require.Len(t, st.Results, 1)
	assert.Equal(t, "tabs-9", st.Results[0].ID)
}

func TestPerformSearch_ErrorStored(t *testing.T) {
	s, searcher, _ := openWith(t, tabResult("tabs-1"), tabResult("tabs-2"))
	s.SetSelectedIndex(1)
	searcher.mu.Lock()
	searcher.fn = func(context.Context, string) (search.Outcome, error) {
		return search.Outcome{Results: []extension.SearchResult{}}, errors.New("load commands: host unreachable")
	}
	searcher.mu.Unlock()

	err := s.PerformSearch(context.Background(), "gmail")
	require.Error(t, err)
	st := s.State()
	assert.False(t, st.Loading)
	assert.Equal(t, "load commands: host unreachable", st.Error)
	assert.Equal(t, []string{"tabs-1", "tabs-2"}, resultIDs(st.Results), "previous results stay visible")
	assert.Equal(t, 1, st.SelectedIndex)
}

func TestPerformSearch_ErrorBeforeAnyResults(t *testing.T) {
	searcher := &fakeSearcher{fn: func(context.Context, string) (search.Outcome, error) {
		return search.Outcome{}, errors.New("load commands: host unreachable")
	}}
	s := newTestStore(t, searcher, &fakeRequester{})

	require.Error(t, s.PerformSearch(context.Background(), "gmail"))
	st := s.State()
	assert.NotNil(t, st.Results)
	assert.Empty(t, st.Results)
	assert.Equal(t, 0, st.SelectedIndex)
}

func TestPerformSearch_FailedBlankReloadKeepsResults(t *testing.T) {
	s, searcher, req := openWith(t, tabResult("tabs-1"))
	searcher.mu.Lock()
	searcher.fn = func(context.Context, string) (search.Outcome, error) {
		return search.Outcome{
			Results:          []extension.SearchResult{tabResult("tabs-7"), tabResult("tabs-8")},
			ActiveProviderID: "tabs",
			ActiveCommandID:  "search",
		}, nil
	}
	searcher.mu.Unlock()
	require.NoError(t, s.PerformSearch(context.Background(), "t x"))
	s.SetSelectedIndex(1)

	req.mu.Lock()
	req.initErr = broker.ErrTimeout
	req.mu.Unlock()

	err := s.PerformSearch(context.Background(), "  ")
	require.ErrorIs(t, err, broker.ErrTimeout)

	st := s.State()
	assert.False(t, st.Loading)
	assert.Contains(t, st.Error, "timed out")
	assert.Equal(t, []string{"tabs-7", "tabs-8"}, resultIDs(st.Results))
	assert.Equal(t, 1, st.SelectedIndex)
	assert.Empty(t, st.ActiveProviderID, "a blank query leaves the pinned command")
	assert.Empty(t, st.ActiveCommandID)
}

func TestPerformSearch_BlankQueryLoadsInitialResults(t *testing.T) {
	searcher := &fakeSearcher{}
	req := &fakeRequester{initial: []extension.SearchResult{tabResult("tabs-1")}}
	s := newTestStore(t, searcher, req)

	require.NoError(t, s.PerformSearch(context.Background(), "   "))
	assert.Empty(t, searcher.recorded())
	assert.Len(t, s.State().Results, 1)
}

func TestPerformSearch_StaleResultsDiscarded(t *testing.T) {
	release := make(chan struct{})
	searcher := &fakeSearcher{fn: func(_ context.Context, q string) (search.Outcome, error) {
		if q == "slow" {
			<-release
		}
		return search.Outcome{Results: []extension.SearchResult{tabResult("tabs-" + q)}}, nil
	}}
	s := newTestStore(t, searcher, &fakeRequester{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.PerformSearch(context.Background(), "slow")
	}()
	require.Eventually(t, func() bool { return len(searcher.recorded()) == 1 }, time.Second, time.Millisecond)

	require.NoError(t, s.PerformSearch(context.Background(), "fast"))
	close(release)
	<-done

	st := s.State()
	require.Len(t, st.Results, 1)
	assert.Equal(t, "tabs-fast", st.Results[0].ID)
	assert.False(t, st.Loading)
}

func TestClose_DiscardsInFlightSearch(t *testing.T) {
	release := make(chan struct{})
	searcher := &fakeSearcher{fn: func(context.Context, string) (search.Outcome, error) {
		<-release
		return search.Outcome{Results: []extension.SearchResult{tabResult("tabs-late")}}, nil
	}}
	s := newTestStore(t, searcher, &fakeRequester{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.PerformSearch(context.Background(), "late")
	}()
	require.Eventually(t, func() bool { return len(searcher.recorded()) == 1 }, time.Second, time.Millisecond)

	s.Close()
	close(release)
	<-done

	assert.Empty(t, s.State().Results)
}

// --- Executing ---

func TestExecuteAction_UnknownResult(t *testing.T) {
	s, _, req := openWith(t, tabResult("tabs-1"))
	err := s.ExecuteAction(context.Background(), "tabs-404", "switch")
	assert.ErrorIs(t, err, ErrResultNotFound)
	assert.Empty(t, req.recordedActions())
}

func TestExecuteAction_SearchCommandWritesAlias(t *testing.T) {
	tests := []struct {
		name      string
		command   extension.Command
		wantQuery string
	}{
		{name: "separator appended", command: testCommands[2], wantQuery: "t "},
		{name: "self delimiting alias", command: testCommands[0], wantQuery: ">"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmdResult := extension.CommandResult(tt.command)
			s, searcher, req := openWith(t, cmdResult)

			require.NoError(t, s.ExecuteAction(context.Background(), cmdResult.ID, ""))

			st := s.State()
			assert.Equal(t, tt.wantQuery, st.Query)
			assert.Equal(t, tt.command.ProviderID, st.ActiveProviderID)
			assert.Equal(t, tt.command.LocalID(), st.ActiveCommandID)
			assert.True(t, st.Open)
			assert.Empty(t, req.recordedActions(), "entering a search mode sends no action request")

			require.Eventually(t, func() bool { return len(searcher.recorded()) == 1 }, time.Second, time.Millisecond)
			assert.Equal(t, []string{tt.wantQuery}, searcher.recorded())
		})
	}
}

func TestExecuteAction_ActionCommandRunsAndCloses(t *testing.T) {
	cmdResult := extension.CommandResult(testCommands[1])
	s, _, req := openWith(t, cmdResult)

	require.NoError(t, s.ExecuteAction(context.Background(), cmdResult.ID, ""))

	calls := req.recordedActions()
	require.Len(t, calls, 1)
	assert.Equal(t, actionCall{providerID: "core", commandID: "clear-history", actionID: extension.ActionExecute}, calls[0])
	assert.False(t, s.State().Open)
}

func TestExecuteAction_SuccessCloses(t *testing.T) {
	r := tabResult("tabs-1", extension.Action{ID: "switch", Primary: true}, extension.Action{ID: "close"})
	r.Metadata = map[string]any{"tabId": float64(1)}
	s, _, req := openWith(t, r)

	require.NoError(t, s.ExecuteAction(context.Background(), "tabs-1", ""))

	calls := req.recordedActions()
	require.Len(t, calls, 1)
	assert.Equal(t, "tabs", calls[0].providerID)
	assert.Equal(t, "search", calls[0].commandID, "falls back to the provider's first search command")
	assert.Equal(t, "switch", calls[0].actionID)
	assert.Equal(t, "tabs-1", calls[0].resultID)
	assert.Equal(t, float64(1), calls[0].metadata["tabId"])

	st := s.State()
	assert.False(t, st.Open)
	assert.Empty(t, st.Results)
}

func TestExecuteAction_FailureStaysOpen(t *testing.T) {
	s, _, req := openWith(t, tabResult("tabs-1", extension.Action{ID: "close"}))
	req.actionErr = "tab already closed"

	err := s.ExecuteAction(context.Background(), "tabs-1", "close")
	require.ErrorIs(t, err, broker.ErrProviderExecution)

	st := s.State()
	assert.True(t, st.Open)
	assert.Contains(t, st.Error, "tab already closed")
	assert.Len(t, st.Results, 1)
}

func TestExecuteAction_CommandIDFromMetadataThenPin(t *testing.T) {
	withMeta := extension.SearchResult{
		ID: "bookmarks-3", Type: extension.TypeBookmark,
		Actions:  []extension.Action{{ID: "open"}},
		Metadata: map[string]any{extension.MetaCommandID: "recent"},
	}
	s, _, req := openWith(t, withMeta)
	require.NoError(t, s.ExecuteAction(context.Background(), "bookmarks-3", ""))
	assert.Equal(t, "recent", req.recordedActions()[0].commandID)

	pinned := &fakeSearcher{fn: func(context.Context, string) (search.Outcome, error) {
		return search.Outcome{
			Results:          []extension.SearchResult{{ID: "tabs-4", Type: extension.TypeTab, Actions: []extension.Action{{ID: "switch"}}}},
			ActiveProviderID: "tabs",
			ActiveCommandID:  "windows",
		}, nil
	}}
	req2 := &fakeRequester{}
	s2 := newTestStore(t, pinned, req2)
	require.NoError(t, s2.PerformSearch(context.Background(), "w x"))
	require.NoError(t, s2.ExecuteAction(context.Background(), "tabs-4", ""))
	assert.Equal(t, "windows", req2.recordedActions()[0].commandID)
}

func TestExecuteSelected_UsesMenuSelection(t *testing.T) {
	s, _, req := openWith(t, tabResult("tabs-1",
		extension.Action{ID: "switch", Primary: true},
		extension.Action{ID: "close"},
	))

	require.True(t, s.OpenActionsMenu())
	require.NoError(t, s.ExecuteSelected(context.Background()))
	assert.Equal(t, "close", req.recordedActions()[0].actionID)
}

// --- Observation ---

func TestSubscribe_ReceivesSnapshots(t *testing.T) {
	s := newTestStore(t, &fakeSearcher{}, &fakeRequester{initial: []extension.SearchResult{tabResult("tabs-1")}})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := s.Subscribe(ctx)
	require.NoError(t, s.Open(context.Background()))

	var last State
	timeout := time.After(time.Second)
	for {
		select {
		case ev := <-events:
			last = ev.Payload
		case <-timeout:
			t.Fatal("no final snapshot")
		}
		if last.Open && !last.Loading && len(last.Results) == 1 {
			return
		}
	}
}
