package tui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sibila/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/sibila/internal/core/domain"
)

func newTestPorts() *Ports {
	return &Ports{
		Query: &MockQueryService{Results: []domain.QueryResult{
			{ChunkID: "sts-1#0", DocumentID: "sts-1", Text: "El despido es nulo.", Score: 0.9},
		}},
		Documents: &MockDocumentService{Docs: map[string]*domain.Document{
			"sts-1": {ID: "sts-1", Title: "STS 1/2021", Content: "El despido es nulo."},
		}},
	}
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	app, err := NewApp(newTestPorts())
	require.NoError(t, err)
	app.SetDimensions(100, 30)
	return app
}

// drain runs cmd and feeds application messages back, following chains.
// Component messages such as cursor blinks end the chain.
func drain(app *App, cmd tea.Cmd) {
	for i := 0; cmd != nil && i < 10; i++ {
		msg := cmd()
		switch msg.(type) {
		case messages.ViewChanged, messages.QueryCompleted, messages.DocumentSelected,
			messages.DocumentContentLoaded, messages.DocumentsLoaded, messages.DocumentDeleted,
			messages.ErrorOccurred:
		default:
			return
		}
		_, cmd = app.Update(msg)
	}
}

func TestNewApp(t *testing.T) {
	app, err := NewApp(newTestPorts())

	require.NoError(t, err)
	assert.Equal(t, messages.ViewMenu, app.CurrentView())
	assert.False(t, app.Ready())
	assert.Equal(t, "Initialising...", app.View())
	assert.NotNil(t, app.Init())
}

func TestNewApp_MissingQuery(t *testing.T) {
	_, err := NewApp(&Ports{Documents: &MockDocumentService{}})
	assert.ErrorIs(t, err, ErrMissingQueryService)

	_, err = NewApp(nil)
	assert.ErrorIs(t, err, ErrMissingQueryService)
}

func TestApp_WithContext(t *testing.T) {
	app, _ := NewApp(newTestPorts())

	assert.Same(t, app, app.WithContext(context.Background()))
}

func TestApp_WindowSize(t *testing.T) {
	app, _ := NewApp(newTestPorts())

	model, cmd := app.Update(tea.WindowSizeMsg{Width: 80, Height: 24})

	assert.Equal(t, app, model)
	assert.Nil(t, cmd)
	assert.True(t, app.Ready())
	assert.Contains(t, app.View(), "Sibila")
}

func TestApp_CtrlCQuits(t *testing.T) {
	app := newTestApp(t)

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestApp_QuitMessage(t *testing.T) {
	app := newTestApp(t)

	_, cmd := app.Update(messages.Quit{})

	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestApp_SearchFlow(t *testing.T) {
	app := newTestApp(t)

	// menu -> search
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	drain(app, cmd)
	require.Equal(t, messages.ViewSearch, app.CurrentView())

	for _, r := range "despido" {
		app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	assert.Equal(t, "despido", app.Query())

	_, cmd = app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	drain(app, cmd)

	require.Len(t, app.Results(), 1)
	assert.Equal(t, 0, app.SelectedIndex())
	assert.NoError(t, app.Err())
	assert.Contains(t, app.View(), "Result 1/1")

	// open the document, then come back with results intact
	_, cmd = app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	drain(app, cmd)
	require.Equal(t, messages.ViewDocContent, app.CurrentView())
	assert.Contains(t, app.View(), "STS 1/2021")

	_, cmd = app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	drain(app, cmd)
	assert.Equal(t, messages.ViewSearch, app.CurrentView())
	assert.Len(t, app.Results(), 1)
}

func TestApp_QueryError(t *testing.T) {
	ports := newTestPorts()
	ports.Query = &MockQueryService{Err: domain.ErrEmbeddingTimeout}
	app, err := NewApp(ports)
	require.NoError(t, err)
	app.SetDimensions(100, 30)
	app.Update(messages.ViewChanged{View: messages.ViewSearch})

	for _, r := range "desahucio" {
		app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	drain(app, cmd)

	assert.ErrorIs(t, app.Err(), domain.ErrEmbeddingTimeout)
	assert.Contains(t, app.View(), "Error:")
}

func TestApp_DocumentsFlow(t *testing.T) {
	app := newTestApp(t)

	_, cmd := app.Update(messages.ViewChanged{View: messages.ViewDocuments})
	drain(app, cmd)
	assert.Contains(t, app.View(), "Documents (1)")

	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	_, cmd = app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'y'}})
	drain(app, cmd)

	assert.Contains(t, app.View(), "Documents (0)")
}

func TestApp_HelpView(t *testing.T) {
	app := newTestApp(t)

	app.Update(messages.ViewChanged{View: messages.ViewHelp})
	assert.Contains(t, app.View(), "tribunal=TS")

	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})
	assert.Equal(t, messages.ViewHelp, app.CurrentView())

	app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, messages.ViewMenu, app.CurrentView())
}

func TestApp_ErrorOccurred(t *testing.T) {
	app := newTestApp(t)
	_, cmd := app.Update(messages.ViewChanged{View: messages.ViewDocuments})
	drain(app, cmd)

	app.Update(messages.ErrorOccurred{Err: domain.ErrIndexIO})

	assert.ErrorIs(t, app.Err(), domain.ErrIndexIO)
	assert.Contains(t, app.View(), "Error:")
}

func TestViewType_String(t *testing.T) {
	assert.Equal(t, "search", messages.ViewSearch.String())
	assert.Equal(t, "doc_content", messages.ViewDocContent.String())
	assert.Equal(t, "unknown", messages.ViewType(99).String())
}
