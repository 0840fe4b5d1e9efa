// Package tui renders the palette in a terminal. The model owns no palette
// state of its own: it forwards input to the store and redraws from the
// snapshots the store publishes.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/runger/palette/internal/extension"
	"github.com/runger/palette/internal/pubsub"
	"github.com/runger/palette/internal/store"
)

const defaultPlaceholder = "Search tabs, history and bookmarks, or type > for commands"

// stateMsg carries a store snapshot into the update loop.
type stateMsg struct {
	state store.State
}

// eventsClosedMsg is sent when the store subscription ends.
type eventsClosedMsg struct{}

// openedMsg is sent when Store.Open returns.
type openedMsg struct {
	err error
}

// actionDoneMsg is sent when an action started from the UI returns.
type actionDoneMsg struct {
	err error
}

// Model is the Bubble Tea model for the palette.
type Model struct {
	store  *store.Store
	ctx    context.Context
	events <-chan pubsub.Event[store.State]

	state   store.State
	input   textinput.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap

	width  int
	height int

	// opened is set once the store has reported an open palette, so a
	// later closed snapshot means an action finished it.
	opened    bool
	cancelled bool
	lastErr   error
}

// NewModel creates a model driving s. The subscription lives as long as
// ctx.
func NewModel(ctx context.Context, s *store.Store) Model {
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = defaultPlaceholder
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot

	return Model{
		store:   s,
		ctx:     ctx,
		events:  s.Subscribe(ctx),
		input:   input,
		spinner: sp,
		help:    help.New(),
		keys:    defaultKeyMap(),
	}
}

// WithQuery pre-fills the query.
func (m Model) WithQuery(q string) Model {
	m.input.SetValue(q)
	m.input.CursorEnd()
	return m
}

// IsCancelled reports whether the user dismissed the palette.
func (m Model) IsCancelled() bool {
	return m.cancelled
}

// Err returns the last action error.
func (m Model) Err() error {
	return m.lastErr
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		m.waitForState(),
		m.openCmd(m.input.Value()),
	)
}

func (m Model) waitForState() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return stateMsg{state: ev.Payload}
	}
}

func (m Model) openCmd(query string) tea.Cmd {
	s, ctx := m.store, m.ctx
	return func() tea.Msg {
		err := s.Open(ctx)
		if err == nil && query != "" {
			s.SetQuery(query)
		}
		return openedMsg{err: err}
	}
}

func (m Model) executeCmd(resultID, actionID string) tea.Cmd {
	s, ctx := m.store, m.ctx
	return func() tea.Msg {
		if resultID == "" {
			return actionDoneMsg{err: s.ExecuteSelected(ctx)}
		}
		return actionDoneMsg{err: s.ExecuteAction(ctx, resultID, actionID)}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-4, 10)
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case stateMsg:
		return m.handleState(msg.state)

	case eventsClosedMsg:
		return m, tea.Quit

	case openedMsg:
		m.lastErr = msg.err
		return m.syncInput(), nil

	case actionDoneMsg:
		m.lastErr = msg.err
		if !m.store.State().Open {
			return m, tea.Quit
		}
		return m.syncInput(), nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleState(st store.State) (tea.Model, tea.Cmd) {
	m.state = st
	if st.Open {
		m.opened = true
	} else if m.opened {
		// An action closed the palette.
		return m, tea.Quit
	}

	m.input.Placeholder = defaultPlaceholder
	if c, ok := m.activeCommand(); ok && c.Placeholder != "" {
		m.input.Placeholder = c.Placeholder
	}
	return m, m.waitForState()
}

// syncInput copies a query the store wrote itself, such as a command alias,
// into the input. Snapshots produced by typing are never copied back since
// they may lag behind the keystrokes. SetQuery ignores the echo.
func (m Model) syncInput() Model {
	if q := m.store.State().Query; q != m.input.Value() {
		m.input.SetValue(q)
		m.input.CursorEnd()
	}
	return m
}

func (m Model) activeCommand() (extension.Command, bool) {
	if m.state.ActiveProviderID == "" {
		return extension.Command{}, false
	}
	id := extension.QualifiedID(m.state.ActiveProviderID, m.state.ActiveCommandID)
	for _, c := range m.state.Commands {
		if c.ID == id {
			return c, true
		}
	}
	return extension.Command{}, false
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.cancel()

	case key.Matches(msg, m.keys.Back):
		if m.state.ActionsMenu.Open {
			m.store.CloseActionsMenu()
			return m, nil
		}
		return m.cancel()

	case key.Matches(msg, m.keys.Execute):
		return m, m.executeCmd("", "")

	case key.Matches(msg, m.keys.Up):
		m.move(-1)
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.move(1)
		return m, nil

	case key.Matches(msg, m.keys.Actions):
		m.store.ToggleActionsMenu()
		return m, nil
	}

	if r, ok := m.state.SelectedResult(); ok {
		for _, a := range r.Actions {
			if a.Shortcut != "" && a.Shortcut != "enter" && a.Shortcut == msg.String() {
				return m, m.executeCmd(r.ID, a.ID)
			}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.store.SetQuery(m.input.Value())
	return m, cmd
}

func (m Model) move(delta int) {
	if m.state.ActionsMenu.Open {
		m.store.SetActionsMenuSelectedIndex(m.state.ActionsMenu.SelectedIndex + delta)
		return
	}
	m.store.MoveSelection(delta)
}

func (m Model) cancel() (tea.Model, tea.Cmd) {
	m.cancelled = true
	m.store.Close()
	return m, tea.Quit
}

// --- View rendering ---

var (
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62"))
	normalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	badgeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	menuStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.viewHeader())
	b.WriteRune('\n')
	b.WriteString(m.input.View())
	b.WriteRune('\n')
	b.WriteString(m.viewResults())
	if m.state.ActionsMenu.Open {
		b.WriteRune('\n')
		b.WriteString(m.viewActionsMenu())
	}
	b.WriteRune('\n')
	b.WriteString(m.viewStatus())

	return b.String()
}

func (m Model) viewHeader() string {
	if m.state.ActiveProviderID == "" {
		return dimStyle.Render("palette")
	}
	if c, ok := m.activeCommand(); ok {
		return badgeStyle.Render(Clean(c.Name))
	}
	return badgeStyle.Render(extension.QualifiedID(m.state.ActiveProviderID, m.state.ActiveCommandID))
}

// listHeight returns the number of visible result rows.
func (m Model) listHeight() int {
	// header, input, status, help
	const chrome = 4
	h := m.height - chrome
	if m.state.ActionsMenu.Open {
		h -= len(m.selectedSecondary()) + 2
	}
	if h < 1 {
		h = 10
	}
	return h
}

func (m Model) viewResults() string {
	results := m.state.Results
	if len(results) == 0 {
		if m.state.Loading {
			return dimStyle.Render("Searching…")
		}
		return dimStyle.Render("No results")
	}

	height := m.listHeight()
	start := 0
	if m.state.SelectedIndex >= height {
		start = m.state.SelectedIndex - height + 1
	}
	end := min(start+height, len(results))

	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		lines = append(lines, m.viewResult(results[i], i == m.state.SelectedIndex))
	}
	return strings.Join(lines, "\n")
}

func (m Model) viewResult(r extension.SearchResult, selected bool) string {
	width := m.width
	if width <= 0 {
		width = 80
	}

	icon := Clean(r.Icon)
	if icon == "" {
		icon = "·"
	}
	title := Clean(r.Title)
	desc := Clean(r.Description)

	prefix := "  "
	if selected {
		prefix = "> "
	}
	line := prefix + icon + " " + Truncate(title, width/2)
	if desc != "" {
		room := width - lipgloss.Width(line) - 3
		if room > 8 {
			line += "  " + dimStyle.Render(MiddleTruncate(desc, room))
		}
	}

	if selected {
		return selectedStyle.Render(line)
	}
	return normalStyle.Render(line)
}

func (m Model) selectedSecondary() []extension.Action {
	r, ok := m.state.SelectedResult()
	if !ok {
		return nil
	}
	return r.SecondaryActions()
}

func (m Model) viewActionsMenu() string {
	actions := m.selectedSecondary()
	lines := make([]string, 0, len(actions))
	for i, a := range actions {
		label := a.Label
		if a.Shortcut != "" {
			label += "  " + dimStyle.Render(a.Shortcut)
		}
		if i == m.state.ActionsMenu.SelectedIndex {
			lines = append(lines, selectedStyle.Render("> "+label))
		} else {
			lines = append(lines, normalStyle.Render("  "+label))
		}
	}
	return menuStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) viewStatus() string {
	switch {
	case m.state.Error != "":
		return errorStyle.Render(fmt.Sprintf("Error: %s", Clean(m.state.Error)))
	case m.state.Loading:
		return m.spinner.View() + dimStyle.Render(" loading")
	default:
		return m.help.View(m.keys)
	}
}
