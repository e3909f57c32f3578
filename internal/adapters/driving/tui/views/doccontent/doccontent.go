// Package doccontent provides the document content view for the TUI.
package doccontent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/sibila/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/sibila/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sibila/internal/core/domain"
	"github.com/custodia-labs/sibila/internal/core/ports/driving"
)

// ErrNoDocumentService indicates that no document service was provided.
var ErrNoDocumentService = errors.New("document service not available")

// headerLines is the space above the viewport: title and separator.
const headerLines = 3

// View shows a document's metadata and full text.
type View struct {
	styles          *styles.Styles
	documentService driving.DocumentService
	ctx             context.Context

	documentID string
	document   *domain.Document
	back       messages.ViewType
	viewport   viewport.Model
	width      int
	height     int
	err        error
	loading    bool
}

// NewView creates a new document content view.
func NewView(s *styles.Styles, documentService driving.DocumentService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles:          s,
		documentService: documentService,
		ctx:             context.Background(),
		back:            messages.ViewDocuments,
		viewport:        viewport.New(76, 18),
		width:           80,
		height:          24,
	}
}

// WithContext sets the context for service calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Open starts loading documentID. Esc returns to back.
func (v *View) Open(documentID string, back messages.ViewType) tea.Cmd {
	v.documentID = documentID
	v.document = nil
	v.back = back
	v.err = nil
	v.loading = true
	v.viewport.SetContent("")
	v.viewport.GotoTop()

	ctx, svc := v.ctx, v.documentService
	return func() tea.Msg {
		if svc == nil {
			return messages.DocumentContentLoaded{DocumentID: documentID, Err: ErrNoDocumentService}
		}
		doc, err := svc.Get(ctx, documentID)
		return messages.DocumentContentLoaded{DocumentID: documentID, Document: doc, Err: err}
	}
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return nil
}

// Update handles messages for the document content view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.DocumentContentLoaded:
		if msg.DocumentID != v.documentID {
			return v, nil
		}
		v.loading = false
		v.err = msg.Err
		if msg.Err == nil {
			v.document = msg.Document
			v.viewport.SetContent(v.renderBody())
		}
		return v, nil

	case messages.ErrorOccurred:
		v.err = msg.Err
		return v, nil
	}

	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "esc":
		back := v.back
		return v, func() tea.Msg {
			return messages.ViewChanged{View: back}
		}
	case "home", "g":
		v.viewport.GotoTop()
		return v, nil
	case "end", "G":
		v.viewport.GotoBottom()
		return v, nil
	}

	var cmd tea.Cmd
	v.viewport, cmd = v.viewport.Update(msg)
	return v, cmd
}

// renderBody renders metadata followed by the wrapped text.
func (v *View) renderBody() string {
	doc := v.document
	if doc == nil {
		return ""
	}

	var b strings.Builder
	if doc.URI != "" {
		b.WriteString(v.styles.MetaKey.Render("uri:") + " " + doc.URI + "\n")
	}
	b.WriteString(v.styles.MetaKey.Render("chunks:") + fmt.Sprintf(" %d\n", len(doc.ChunkIDs)))

	flat := doc.Metadata.Flatten()
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(v.styles.MetaKey.Render(k+":") + " " + flat[k] + "\n")
	}
	b.WriteString("\n")

	if strings.TrimSpace(doc.Content) == "" {
		b.WriteString(v.styles.Muted.Render("(No content)"))
		return b.String()
	}
	b.WriteString(lipgloss.NewStyle().Width(v.viewport.Width).Render(doc.Content))
	return b.String()
}

// View renders the document content view.
func (v *View) View() string {
	var b strings.Builder

	title := v.documentID
	if v.document != nil && v.document.Title != "" {
		title = v.document.Title
	}
	b.WriteString(v.styles.Title.Render(title))
	b.WriteString("\n")
	b.WriteString(v.styles.Muted.Render(strings.Repeat("─", min(v.width-4, 60))))
	b.WriteString("\n")

	switch {
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Loading content..."))
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
	default:
		b.WriteString(v.viewport.View())
		b.WriteString("\n")
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  [%3.f%%]", v.viewport.ScrollPercent()*100)))
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[↑/↓/PgUp/PgDn] scroll  [g/G] top/bottom  [esc] back"))
	return b.String()
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.viewport.Width = max(20, width-4)
	v.viewport.Height = max(3, height-headerLines-3)
	if v.document != nil {
		v.viewport.SetContent(v.renderBody())
	}
}

// Document returns the loaded document.
func (v *View) Document() *domain.Document {
	return v.document
}

// DocumentID returns the document being shown.
func (v *View) DocumentID() string {
	return v.documentID
}

// Back returns the view esc returns to.
func (v *View) Back() messages.ViewType {
	return v.back
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
