// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/sibila/internal/core/domain"
)

// QueryCompleted carries query results back to the model.
type QueryCompleted struct {
	Query   string
	Results []domain.QueryResult
	Err     error
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewMenu is the main navigation menu.
	ViewMenu ViewType = iota
	// ViewSearch is the query input and results view.
	ViewSearch
	// ViewDocuments lists the document catalogue.
	ViewDocuments
	// ViewDocContent shows a document with its metadata.
	ViewDocContent
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewMenu:
		return "menu"
	case ViewSearch:
		return "search"
	case ViewDocuments:
		return "documents"
	case ViewDocContent:
		return "doc_content"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}

// DocumentsLoaded carries the document catalogue.
type DocumentsLoaded struct {
	Documents []domain.Document
	Err       error
}

// DocumentSelected asks for a document to be opened. Back is the view
// to return to when the content view is closed.
type DocumentSelected struct {
	DocumentID string
	Back       ViewType
}

// DocumentContentLoaded carries a fully loaded document.
type DocumentContentLoaded struct {
	DocumentID string
	Document   *domain.Document
	Err        error
}

// DocumentDeleted signals a document was removed from the index.
type DocumentDeleted struct {
	DocumentID string
	Err        error
}
