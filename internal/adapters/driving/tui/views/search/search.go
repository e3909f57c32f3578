// Package search provides the main search view for the TUI.
package search

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/sibila/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/sibila/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/sibila/internal/adapters/driving/tui/components/passage"
	"github.com/custodia-labs/sibila/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/sibila/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/sibila/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/sibila/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sibila/internal/core/domain"
	"github.com/custodia-labs/sibila/internal/core/ports/driving"
)

// View is the search view: query input, result list, passage panel and
// status bar.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.QueryInput
	list      *list.ResultList
	passage   *passage.Panel
	statusbar *status.Bar

	queryService driving.QueryService
	ctx          context.Context
	topK         *int

	width      int
	height     int
	ready      bool
	err        error
	focusInput bool // true while typing, false while browsing results
}

// NewView creates a new search view.
func NewView(s *styles.Styles, km *keymap.KeyMap, queryService driving.QueryService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &View{
		styles:       s,
		keymap:       km,
		input:        input.NewQueryInput(s),
		list:         list.NewResultList(s),
		passage:      passage.NewPanel(s),
		statusbar:    status.NewBar(s, km),
		queryService: queryService,
		ctx:          context.Background(),
		width:        80,
		height:       24,
		focusInput:   true,
	}
}

// WithContext sets the context for the view.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// WithTopK sets how many results a query asks for. Nil uses the
// service default.
func (v *View) WithTopK(k *int) *View {
	v.topK = k
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the search view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.QueryCompleted:
		v.handleQueryCompleted(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.setError(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	if v.focusInput {
		v.input, cmd = v.input.Update(msg)
	}
	return v, cmd
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	if msg.Type == tea.KeyEsc {
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	}

	if v.focusInput {
		if msg.Type == tea.KeyEnter {
			return v, v.submit()
		}
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		return v, cmd
	}

	switch {
	case keymap.Matches(msg.String(), v.keymap.Up):
		v.list.MoveUp()
		v.syncPassage()
	case keymap.Matches(msg.String(), v.keymap.Down):
		v.list.MoveDown()
		v.syncPassage()
	case keymap.Matches(msg.String(), v.keymap.Open):
		if r := v.list.SelectedResult(); r != nil {
			id := r.DocumentID
			return v, func() tea.Msg {
				return messages.DocumentSelected{DocumentID: id, Back: messages.ViewSearch}
			}
		}
	case keymap.Matches(msg.String(), v.keymap.NewSearch):
		v.focusInput = true
		return v, v.input.Focus()
	default:
		// pgup/pgdown and friends scroll the passage
		var cmd tea.Cmd
		v.passage, cmd = v.passage.Update(msg)
		return v, cmd
	}
	return v, nil
}

// submit parses the input and starts the query.
func (v *View) submit() tea.Cmd {
	text, filter, err := v.input.Parse()
	if err != nil {
		v.setError(err)
		return nil
	}
	if strings.TrimSpace(text) == "" {
		v.statusbar.SetState(status.StateReady)
		v.statusbar.SetMessage("Type some words to search for")
		return nil
	}

	v.err = nil
	v.statusbar.SetState(status.StateQuerying)
	v.statusbar.SetMessage("")
	v.statusbar.SetFilter(describeFilter(filter))
	return v.performQuery(text, filter)
}

func (v *View) performQuery(text string, filter domain.QueryFilter) tea.Cmd {
	ctx, svc, topK := v.ctx, v.queryService, v.topK
	return func() tea.Msg {
		if svc == nil {
			return messages.ErrorOccurred{Err: ErrNoQueryService}
		}
		results, err := svc.Query(ctx, text, domain.QueryOptions{TopK: topK, Filter: filter})
		return messages.QueryCompleted{Query: text, Results: results, Err: err}
	}
}

func (v *View) handleQueryCompleted(msg messages.QueryCompleted) {
	if msg.Err != nil {
		v.setError(msg.Err)
		return
	}

	v.err = nil
	v.list.SetResults(msg.Query, msg.Results)
	v.syncPassage()
	v.statusbar.SetState(status.StateResults)
	v.statusbar.SetResultCount(len(msg.Results))

	if len(msg.Results) > 0 {
		v.focusInput = false
		v.input.Blur()
	}
}

func (v *View) setError(err error) {
	v.err = err
	v.statusbar.SetState(status.StateError)
	v.statusbar.SetMessage(err.Error())
}

// syncPassage shows the selected result in the passage panel.
func (v *View) syncPassage() {
	r := v.list.SelectedResult()
	if r == nil {
		v.passage.Clear()
		return
	}
	v.passage.SetResult(v.list.Query(), r, v.list.Selected()+1, v.list.Count())
}

// describeFilter renders a filter as key=a|b pairs.
func describeFilter(f domain.QueryFilter) string {
	parts := make([]string, 0, len(f))
	for _, k := range f.Fields() {
		parts = append(parts, fmt.Sprintf("%s=%s", k, strings.Join(f[k], "|")))
	}
	return strings.Join(parts, " ")
}

// View renders the search view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	sections := make([]string, 0, 8)
	sections = append(sections, v.styles.Title.Render("Sibila"), v.input.View())

	if v.err != nil {
		sections = append(sections, v.styles.Error.Render("Error: "+v.err.Error()))
	}

	sections = append(sections, v.list.View(), v.passage.View(), v.statusbar.View())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetDimensions sets the view dimensions. The list takes a third of the
// space below the input and the passage panel the rest.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	v.input.SetWidth(width)
	v.statusbar.SetWidth(width)

	// title + input box + status bar
	body := height - 1 - 3 - 1
	if body < 8 {
		body = 8
	}
	listHeight := body / 3
	v.list.SetDimensions(width, listHeight)
	v.passage.SetDimensions(width, body-listHeight)
}

// Ready returns whether the view is ready to render.
func (v *View) Ready() bool {
	return v.ready
}

// Query returns the raw input.
func (v *View) Query() string {
	return v.input.Value()
}

// SetQuery sets the raw input.
func (v *View) SetQuery(query string) {
	v.input.SetValue(query)
}

// Results returns the current results.
func (v *View) Results() []domain.QueryResult {
	return v.list.Results()
}

// SelectedIndex returns the index of the selected result.
func (v *View) SelectedIndex() int {
	return v.list.Selected()
}

// SelectedResult returns the currently selected result.
func (v *View) SelectedResult() *domain.QueryResult {
	return v.list.SelectedResult()
}

// Passage returns the rendered passage panel content.
func (v *View) Passage() string {
	return v.passage.Content()
}

// Status returns the status bar state.
func (v *View) Status() status.State {
	return v.statusbar.State()
}

// Err returns the current error, if any.
func (v *View) Err() error {
	return v.err
}

// Reset returns the view to input mode with no results.
func (v *View) Reset() {
	v.focusInput = true
	v.input.Focus()
	v.input.SetValue("")
	v.list.SetResults("", nil)
	v.passage.Clear()
	v.err = nil
	v.statusbar.Clear()
}

// InputFocused returns whether the input has focus.
func (v *View) InputFocused() bool {
	return v.focusInput
}
