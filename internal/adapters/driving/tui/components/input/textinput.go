// Package input provides text input components for the TUI.
package input

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/sibila/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sibila/internal/core/domain"
)

// QueryInput wraps a bubbles textinput. Words of the form key=value are
// read as metadata filters, the rest is the query text.
type QueryInput struct {
	textinput textinput.Model
	styles    *styles.Styles
	width     int
}

// NewQueryInput creates a new query input component.
func NewQueryInput(s *styles.Styles) *QueryInput {
	if s == nil {
		s = styles.DefaultStyles()
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "despido improcedente tribunal=TS"
	ti.Focus()
	ti.CharLimit = 512
	ti.Width = 50

	return &QueryInput{
		textinput: ti,
		styles:    s,
		width:     50,
	}
}

// Init initialises the input.
func (q *QueryInput) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles input messages.
func (q *QueryInput) Update(msg tea.Msg) (*QueryInput, tea.Cmd) {
	var cmd tea.Cmd
	q.textinput, cmd = q.textinput.Update(msg)
	return q, cmd
}

// View renders the input.
func (q *QueryInput) View() string {
	return q.styles.InputField.Render(q.textinput.View())
}

// Value returns the raw input value.
func (q *QueryInput) Value() string {
	return q.textinput.Value()
}

// SetValue sets the input value.
func (q *QueryInput) SetValue(value string) {
	q.textinput.SetValue(value)
}

// Parse splits the input into query text and filter. A key given more
// than once matches any of its values.
func (q *QueryInput) Parse() (string, domain.QueryFilter, error) {
	return ParseQueryLine(q.textinput.Value())
}

// ParseQueryLine splits line into query text and filter.
func ParseQueryLine(line string) (string, domain.QueryFilter, error) {
	var words []string
	raw := map[string]any{}
	for _, field := range strings.Fields(line) {
		key, value, ok := strings.Cut(field, "=")
		if !ok || key == "" || value == "" {
			words = append(words, field)
			continue
		}
		values, _ := raw[key].([]string)
		raw[key] = append(values, value)
	}

	filter, err := domain.ParseFilter(raw)
	if err != nil {
		return "", nil, err
	}
	return strings.Join(words, " "), filter, nil
}

// Focus sets focus on the input.
func (q *QueryInput) Focus() tea.Cmd {
	return q.textinput.Focus()
}

// Blur removes focus from the input.
func (q *QueryInput) Blur() {
	q.textinput.Blur()
}

// Focused returns whether the input is focused.
func (q *QueryInput) Focused() bool {
	return q.textinput.Focused()
}

// SetWidth sets the width of the input.
func (q *QueryInput) SetWidth(width int) {
	q.width = width
	frame, _ := q.styles.InputField.GetFrameSize()
	inputWidth := width - frame - lipgloss.Width(q.textinput.Prompt) - 1
	if inputWidth < 20 {
		inputWidth = 20
	}
	q.textinput.Width = inputWidth
}

// Width returns the current width.
func (q *QueryInput) Width() int {
	return q.width
}

// Reset clears the input.
func (q *QueryInput) Reset() {
	q.textinput.Reset()
}
