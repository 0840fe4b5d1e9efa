// Package store holds the palette's application state and the operations
// the UI drives it with. Searches are debounced and only the most recently
// dispatched one may update the state.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/runger/palette/internal/broker"
	"github.com/runger/palette/internal/extension"
	"github.com/runger/palette/internal/pubsub"
	"github.com/runger/palette/internal/search"
)

// Defaults for the initial result list and debounce window.
const (
	DefaultDebounce        = 300 * time.Millisecond
	DefaultInitialProvider = "tabs"
	DefaultInitialCommand  = "search"
)

var (
	// ErrResultNotFound is returned by ExecuteAction for an unknown result id.
	ErrResultNotFound = errors.New("result not found")

	// ErrCommandNotFound is returned when a result cannot be mapped to a command.
	ErrCommandNotFound = errors.New("command not found")

	// ErrNoAction is returned when a result has no action to run.
	ErrNoAction = errors.New("result has no actions")
)

// Searcher runs a query across providers.
type Searcher interface {
	Search(ctx context.Context, query string) (search.Outcome, error)
}

// Requester is the broker surface the store calls directly.
type Requester interface {
	SendSearchRequest(ctx context.Context, providerID, commandID, query string) (*broker.Response, error)
	SendActionRequest(ctx context.Context, providerID, commandID, actionID, resultID string, metadata map[string]any) (*broker.Response, error)
}

// Option configures a Store.
type Option func(*Store)

// WithDebounce sets the quiet period before a typed query is searched.
func WithDebounce(d time.Duration) Option {
	return func(s *Store) {
		s.debounceDelay = d
	}
}

// WithInitialCommand sets the command whose results show before any query.
func WithInitialCommand(providerID, commandID string) Option {
	return func(s *Store) {
		if providerID != "" {
			s.initialProvider = providerID
		}
		if commandID != "" {
			s.initialCommand = commandID
		}
	}
}

// WithLogger sets the store's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store is the single source of truth for the palette UI.
type Store struct {
	searcher  Searcher
	requester Requester
	catalog   extension.Catalog

	debounceDelay   time.Duration
	debouncer       *Debouncer
	initialProvider string
	initialCommand  string
	logger          *slog.Logger

	events *pubsub.Broker[State]

	// ctx scopes searches the store starts on its own (debounced ones).
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	state State
}

// New creates a closed, empty store.
func New(searcher Searcher, requester Requester, catalog extension.Catalog, opts ...Option) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		searcher:        searcher,
		requester:       requester,
		catalog:         catalog,
		debounceDelay:   DefaultDebounce,
		initialProvider: DefaultInitialProvider,
		initialCommand:  DefaultInitialCommand,
		logger:          slog.Default(),
		events:          pubsub.NewBroker[State](),
		ctx:             ctx,
		cancel:          cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.debouncer = NewDebouncer(s.debounceDelay)
	return s
}

// Subscribe streams a snapshot after every state change until ctx ends.
func (s *Store) Subscribe(ctx context.Context) <-chan pubsub.Event[State] {
	return s.events.Subscribe(ctx)
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// update applies fn under the lock and publishes the resulting snapshot.
func (s *Store) update(eventType pubsub.EventType, fn func(st *State)) State {
	s.mu.Lock()
	fn(&s.state)
	snapshot := s.state
	s.mu.Unlock()

	s.events.Publish(eventType, snapshot)
	return snapshot
}

// Open resets the palette, loads the command list and the initial results.
func (s *Store) Open(ctx context.Context) error {
	s.debouncer.Cancel()
	s.update(pubsub.EventTypeReset, func(st *State) {
		*st = State{
			Open:       true,
			Loading:    true,
			Generation: st.Generation,
		}
	})

	commands, err := s.catalog.EnabledCommands(ctx)
	if err != nil {
		s.logger.Warn("failed to load commands", "error", err)
		s.update(pubsub.EventTypeUpdated, func(st *State) {
			st.Error = err.Error()
		})
	} else {
		s.update(pubsub.EventTypeUpdated, func(st *State) {
			st.Commands = commands
		})
	}

	return s.LoadInitialResults(ctx)
}

// Close resets everything. Pending and in-flight searches are discarded.
func (s *Store) Close() {
	s.debouncer.Cancel()
	s.update(pubsub.EventTypeReset, func(st *State) {
		*st = State{Generation: st.Generation + 1}
	})
}

// SetQuery records the typed query and schedules a debounced search.
// Setting the query it already holds does nothing, so an input echoing a
// query the store wrote itself does not trigger a second search.
func (s *Store) SetQuery(query string) {
	s.mu.Lock()
	if s.state.Query == query {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.update(pubsub.EventTypeUpdated, func(st *State) {
		st.Query = query
		st.SelectedIndex = 0
		st.ActionsMenu = ActionsMenu{}
	})
	s.scheduleSearch(query)
}

func (s *Store) scheduleSearch(query string) {
	s.debouncer.Schedule(func() {
		if err := s.PerformSearch(s.ctx, query); err != nil {
			s.logger.Debug("debounced search failed", "query", query, "error", err)
		}
	})
}

// FlushSearch runs the pending debounced search now, if there is one.
func (s *Store) FlushSearch(ctx context.Context) error {
	if !s.debouncer.Pending() {
		return nil
	}
	s.debouncer.Cancel()
	return s.PerformSearch(ctx, s.State().Query)
}

// beginLoad starts a new generation and marks the state loading.
func (s *Store) beginLoad() uint64 {
	var gen uint64
	s.update(pubsub.EventTypeUpdated, func(st *State) {
		st.Generation++
		gen = st.Generation
		st.Loading = true
		st.Error = ""
	})
	return gen
}

// apply runs fn only if gen is still the latest generation. It reports
// whether fn ran.
func (s *Store) apply(gen uint64, fn func(st *State)) bool {
	s.mu.Lock()
	if s.state.Generation != gen {
		s.mu.Unlock()
		s.logger.Debug("discarding stale search", "generation", gen)
		return false
	}
	fn(&s.state)
	snapshot := s.state
	s.mu.Unlock()

	s.events.Publish(pubsub.EventTypeUpdated, snapshot)
	return true
}

// PerformSearch runs query now. A blank query loads the initial results.
// Results are applied only if no newer search started in the meantime.
func (s *Store) PerformSearch(ctx context.Context, query string) error {
	if strings.TrimSpace(query) == "" {
		return s.LoadInitialResults(ctx)
	}

	gen := s.beginLoad()
	out, err := s.searcher.Search(ctx, query)

	s.apply(gen, func(st *State) {
		st.Loading = false
		st.ActionsMenu = ActionsMenu{}
		if err != nil {
			keepResults(st, err)
			return
		}
		st.SelectedIndex = 0
		st.Results = out.Results
		st.Error = ""
		st.ActiveProviderID = out.ActiveProviderID
		st.ActiveCommandID = out.ActiveCommandID
	})
	return err
}

// LoadInitialResults shows the initial command's unfiltered results.
func (s *Store) LoadInitialResults(ctx context.Context) error {
	gen := s.beginLoad()

	results, err := s.initialResults(ctx)
	s.apply(gen, func(st *State) {
		st.Loading = false
		st.ActionsMenu = ActionsMenu{}
		st.ActiveProviderID = ""
		st.ActiveCommandID = ""
		if err != nil {
			keepResults(st, err)
			return
		}
		st.SelectedIndex = 0
		st.Results = results
	})
	return err
}

// keepResults records a failed load. The previous results stay visible;
// before the first load they are empty.
func keepResults(st *State, err error) {
	if st.Results == nil {
		st.Results = []extension.SearchResult{}
	}
	st.SelectedIndex = clampIndex(st.SelectedIndex, len(st.Results))
	st.Error = err.Error()
}

func (s *Store) initialResults(ctx context.Context) ([]extension.SearchResult, error) {
	resp, err := s.requester.SendSearchRequest(ctx, s.initialProvider, s.initialCommand, "")
	if err != nil {
		return nil, fmt.Errorf("load initial results: %w", err)
	}
	var results []extension.SearchResult
	if err := resp.Decode(&results); err != nil {
		return nil, fmt.Errorf("load initial results: %w", err)
	}
	if results == nil {
		results = []extension.SearchResult{}
	}
	return results, nil
}

// ExecuteAction runs actionID on the result with resultID. An empty
// actionID means the result's primary action.
//
// Choosing a search command enters its mode: the query becomes the
// command's alias and a search is scheduled. Any other successful action
// closes the palette; a failed one leaves it open with the error set.
func (s *Store) ExecuteAction(ctx context.Context, resultID, actionID string) error {
	st := s.State()
	result, ok := st.FindResult(resultID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrResultNotFound, resultID)
	}
	if actionID == "" {
		primary, ok := result.PrimaryAction()
		if !ok {
			return fmt.Errorf("%w: %s", ErrNoAction, resultID)
		}
		actionID = primary.ID
	}

	if kind := result.MetadataString(extension.MetaKind); result.Type == extension.TypeCommand && kind != "" {
		return s.executeCommand(ctx, st.Commands, result, extension.CommandKind(kind))
	}

	providerID := extension.ProviderOf(result.ID)
	commandID := result.MetadataString(extension.MetaCommandID)
	if commandID == "" && st.ActiveProviderID == providerID {
		commandID = st.ActiveCommandID
	}
	if commandID == "" {
		cmd, ok := firstSearchCommand(st.Commands, providerID)
		if !ok {
			return s.fail(fmt.Errorf("%w: no search command for provider %s", ErrCommandNotFound, providerID))
		}
		commandID = cmd.LocalID()
	}

	return s.runAction(ctx, providerID, commandID, actionID, result.ID, result.Metadata)
}

func (s *Store) executeCommand(ctx context.Context, commands []extension.Command, result extension.SearchResult, kind extension.CommandKind) error {
	providerID := result.MetadataString(extension.MetaProviderID)
	commandID := result.MetadataString(extension.MetaCommandID)

	if kind == extension.KindAction {
		return s.runAction(ctx, providerID, commandID, extension.ActionExecute, "", nil)
	}

	cmd, ok := findCommand(commands, providerID, commandID)
	if !ok {
		return s.fail(fmt.Errorf("%w: %s", ErrCommandNotFound, extension.QualifiedID(providerID, commandID)))
	}
	query := cmd.PrimaryAlias()
	if !cmd.SelfDelimiting {
		query += " "
	}

	s.update(pubsub.EventTypeUpdated, func(st *State) {
		st.Query = query
		st.SelectedIndex = 0
		st.ActionsMenu = ActionsMenu{}
		st.Error = ""
		st.ActiveProviderID = providerID
		st.ActiveCommandID = commandID
	})
	s.scheduleSearch(query)
	return nil
}

func (s *Store) runAction(ctx context.Context, providerID, commandID, actionID, resultID string, metadata map[string]any) error {
	resp, err := s.requester.SendActionRequest(ctx, providerID, commandID, actionID, resultID, metadata)
	if err == nil {
		err = resp.Err()
	}
	if err != nil {
		return s.fail(fmt.Errorf("action %s on %s.%s: %w", actionID, providerID, commandID, err))
	}

	s.logger.Debug("action executed",
		"provider", providerID,
		"command", commandID,
		"action", actionID,
		"result", resultID,
	)
	s.Close()
	return nil
}

func (s *Store) fail(err error) error {
	s.update(pubsub.EventTypeUpdated, func(st *State) {
		st.Error = err.Error()
		st.Loading = false
	})
	return err
}

// ExecuteSelected runs the highlighted secondary action when the actions
// menu is open, otherwise the selected result's primary action.
func (s *Store) ExecuteSelected(ctx context.Context) error {
	st := s.State()
	r, ok := st.SelectedResult()
	if !ok {
		return ErrResultNotFound
	}
	actionID := ""
	if a, ok := st.SelectedSecondaryAction(); ok {
		actionID = a.ID
	}
	return s.ExecuteAction(ctx, r.ID, actionID)
}

// SetSelectedIndex moves the cursor, clamped to the result list, and
// closes the actions menu.
func (s *Store) SetSelectedIndex(i int) {
	s.update(pubsub.EventTypeUpdated, func(st *State) {
		st.SelectedIndex = clampIndex(i, len(st.Results))
		st.ActionsMenu = ActionsMenu{}
	})
}

// MoveSelection moves the cursor by delta.
func (s *Store) MoveSelection(delta int) {
	s.update(pubsub.EventTypeUpdated, func(st *State) {
		st.SelectedIndex = clampIndex(st.SelectedIndex+delta, len(st.Results))
		st.ActionsMenu = ActionsMenu{}
	})
}

// OpenActionsMenu opens the menu if the selected result has secondary
// actions, and reports whether it did.
func (s *Store) OpenActionsMenu() bool {
	opened := false
	s.update(pubsub.EventTypeUpdated, func(st *State) {
		r, ok := st.SelectedResult()
		if !ok || len(r.SecondaryActions()) == 0 {
			return
		}
		st.ActionsMenu = ActionsMenu{Open: true}
		opened = true
	})
	return opened
}

// CloseActionsMenu closes the menu.
func (s *Store) CloseActionsMenu() {
	s.update(pubsub.EventTypeUpdated, func(st *State) {
		st.ActionsMenu = ActionsMenu{}
	})
}

// ToggleActionsMenu flips the menu and reports whether it is now open.
func (s *Store) ToggleActionsMenu() bool {
	if s.State().ActionsMenu.Open {
		s.CloseActionsMenu()
		return false
	}
	return s.OpenActionsMenu()
}

// SetActionsMenuSelectedIndex moves the menu cursor, wrapping around the
// secondary actions.
func (s *Store) SetActionsMenuSelectedIndex(i int) {
	s.update(pubsub.EventTypeUpdated, func(st *State) {
		r, ok := st.SelectedResult()
		if !ok {
			return
		}
		st.ActionsMenu.SelectedIndex = wrapIndex(i, len(r.SecondaryActions()))
	})
}

// SelectedSecondaryAction returns the highlighted menu entry.
func (s *Store) SelectedSecondaryAction() (extension.Action, bool) {
	return s.State().SelectedSecondaryAction()
}

// Shutdown stops the debouncer, cancels store-started searches and closes
// every subscription.
func (s *Store) Shutdown() {
	s.debouncer.Stop()
	s.cancel()
	s.events.Shutdown()
}

func findCommand(commands []extension.Command, providerID, localID string) (extension.Command, bool) {
	for _, c := range commands {
		if c.ProviderID == providerID && c.LocalID() == localID {
			return c, true
		}
	}
	return extension.Command{}, false
}

func firstSearchCommand(commands []extension.Command, providerID string) (extension.Command, bool) {
	for _, c := range commands {
		if c.ProviderID == providerID && c.IsSearch() {
			return c, true
		}
	}
	return extension.Command{}, false
}
