// Package list provides list display components for the TUI.
package list

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/sibila/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sibila/internal/core/domain"
)

// linesPerResult is the height of one rendered result.
const linesPerResult = 2

// ResultList displays query results in a navigable list.
type ResultList struct {
	results  []domain.QueryResult
	query    string
	selected int
	styles   *styles.Styles
	width    int
	height   int
}

// NewResultList creates a new result list component.
func NewResultList(s *styles.Styles) *ResultList {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &ResultList{
		styles: s,
		width:  80,
		height: 10,
	}
}

// Init initialises the result list.
func (r *ResultList) Init() tea.Cmd {
	return nil
}

// Update handles list navigation messages.
func (r *ResultList) Update(msg tea.Msg) (*ResultList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			r.MoveUp()
		case "down", "j":
			r.MoveDown()
		}
	}
	return r, nil
}

// View renders the result list.
func (r *ResultList) View() string {
	if len(r.results) == 0 {
		return r.styles.Muted.Render("No results")
	}

	visible := r.height / linesPerResult
	if visible < 1 {
		visible = 1
	}
	start := 0
	if r.selected >= visible {
		start = r.selected - visible + 1
	}
	end := start + visible
	if end > len(r.results) {
		end = len(r.results)
	}

	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		lines = append(lines, r.renderResult(i, &r.results[i]))
	}
	return strings.Join(lines, "\n")
}

// renderResult formats one result as a heading line and the sentence
// closest to the query.
func (r *ResultList) renderResult(index int, result *domain.QueryResult) string {
	indicator := "  "
	if index == r.selected {
		indicator = "> "
	}

	heading := result.DocumentID
	if court := courtLine(result.Metadata); court != "" {
		heading += "  " + court
	}
	heading = truncate(heading, r.width-12)
	score := fmt.Sprintf("%.3f", result.Score)

	var title string
	if index == r.selected {
		title = r.styles.Selected.Render(fmt.Sprintf("%s%s  %s", indicator, heading, score))
	} else {
		title = r.styles.Normal.Render(indicator+heading+"  ") + r.styles.Muted.Render(score)
	}

	preview := ""
	if sentences, best := domain.BestSentence(result.Text, r.query); best >= 0 {
		preview = sentences[best]
	}
	preview = truncate(preview, r.width-6)

	return title + "\n" + r.styles.Muted.Render("    "+preview)
}

// courtLine summarises where and when a ruling was issued.
func courtLine(m domain.Metadata) string {
	parts := make([]string, 0, 2)
	for _, key := range []string{domain.MetaTribunal, domain.MetaFecha} {
		if v := m.String(key); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " · ")
}

func truncate(s string, limit int) string {
	if limit < 10 {
		limit = 10
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}

// SetResults updates the result list and the query used for previews.
func (r *ResultList) SetResults(query string, results []domain.QueryResult) {
	r.query = query
	r.results = results
	r.selected = 0
}

// Results returns the current results.
func (r *ResultList) Results() []domain.QueryResult {
	return r.results
}

// Query returns the query the results answer.
func (r *ResultList) Query() string {
	return r.query
}

// Selected returns the index of the selected result.
func (r *ResultList) Selected() int {
	return r.selected
}

// SetSelected sets the selected index.
func (r *ResultList) SetSelected(index int) {
	if index >= 0 && index < len(r.results) {
		r.selected = index
	}
}

// SelectedResult returns the currently selected result, or nil if none.
func (r *ResultList) SelectedResult() *domain.QueryResult {
	if len(r.results) == 0 || r.selected < 0 || r.selected >= len(r.results) {
		return nil
	}
	return &r.results[r.selected]
}

// MoveUp moves selection up, wrapping to the last result.
func (r *ResultList) MoveUp() {
	if len(r.results) == 0 {
		return
	}
	r.selected = (r.selected - 1 + len(r.results)) % len(r.results)
}

// MoveDown moves selection down, wrapping to the first result.
func (r *ResultList) MoveDown() {
	if len(r.results) == 0 {
		return
	}
	r.selected = (r.selected + 1) % len(r.results)
}

// SetDimensions sets the component dimensions.
func (r *ResultList) SetDimensions(width, height int) {
	r.width = width
	r.height = height
}

// Count returns the number of results.
func (r *ResultList) Count() int {
	return len(r.results)
}

// IsEmpty returns whether the list is empty.
func (r *ResultList) IsEmpty() bool {
	return len(r.results) == 0
}
