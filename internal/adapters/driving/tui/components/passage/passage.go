// Package passage renders a single query result with the sentence closest
// to the query highlighted.
package passage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/sibila/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sibila/internal/core/domain"
)

// Panel shows one passage in a scrollable viewport.
type Panel struct {
	styles   *styles.Styles
	viewport viewport.Model
	result   *domain.QueryResult
	query    string
	position int
	total    int
}

// NewPanel creates an empty passage panel.
func NewPanel(s *styles.Styles) *Panel {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &Panel{
		styles:   s,
		viewport: viewport.New(40, 5),
	}
}

// SetResult shows result, which is number position of total.
func (p *Panel) SetResult(query string, result *domain.QueryResult, position, total int) {
	p.query = query
	p.result = result
	p.position = position
	p.total = total
	p.viewport.SetContent(p.render())
	p.viewport.GotoTop()
}

// Clear empties the panel.
func (p *Panel) Clear() {
	p.SetResult("", nil, 0, 0)
}

// Update forwards scrolling keys to the viewport.
func (p *Panel) Update(msg tea.Msg) (*Panel, tea.Cmd) {
	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return p, cmd
}

// View renders the panel inside its border.
func (p *Panel) View() string {
	return p.styles.Passage.Render(p.viewport.View())
}

// SetDimensions sizes the panel including its border.
func (p *Panel) SetDimensions(width, height int) {
	fw, fh := p.styles.Passage.GetFrameSize()
	p.viewport.Width = max(20, width-fw)
	p.viewport.Height = max(3, height-fh)
	p.viewport.SetContent(p.render())
}

// Content returns the rendered passage.
func (p *Panel) Content() string {
	return p.render()
}

func (p *Panel) render() string {
	if p.result == nil {
		return p.styles.Muted.Render("No passage selected.")
	}
	r := p.result

	var b strings.Builder
	b.WriteString(p.styles.Subtitle.Render(fmt.Sprintf("Result %d/%d", p.position, p.total)))
	b.WriteString(p.styles.Muted.Render(fmt.Sprintf("  score=%.3f  %s", r.Score, r.DocumentID)))
	b.WriteString("\n")
	if meta := p.renderMetadata(r.Metadata); meta != "" {
		b.WriteString(meta)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(p.highlight(r.Text))
	return b.String()
}

// highlight joins the passage sentences, marking the best one.
func (p *Panel) highlight(text string) string {
	sentences, best := domain.BestSentence(text, p.query)
	if best < 0 {
		return p.styles.Muted.Render("(empty passage)")
	}
	parts := make([]string, len(sentences))
	for i, s := range sentences {
		if i == best {
			parts[i] = p.styles.Highlight.Render(s)
		} else {
			parts[i] = s
		}
	}
	return lipgloss.NewStyle().Width(p.viewport.Width).Render(strings.Join(parts, " "))
}

func (p *Panel) renderMetadata(m domain.Metadata) string {
	flat := m.Flatten()
	keys := make([]string, 0, len(flat))
	for k := range flat {
		if k == domain.MetaDocID || k == domain.MetaChunkIndex {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = p.styles.MetaKey.Render(k+":") + " " + flat[k]
	}
	return lipgloss.NewStyle().Width(p.viewport.Width).Render(strings.Join(parts, "  "))
}
