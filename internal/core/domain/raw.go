package domain

// SourceFile is a file discovered by a connector before extraction.
type SourceFile struct {
	// Path is the absolute file path.
	Path string

	// Root is the folder the file was discovered under.
	Root string

	// Extension is the lower-cased file extension including the dot.
	Extension string
}

// DocumentID derives the document identifier of the file.
func (f SourceFile) DocumentID() string {
	return DocumentIDFromPath(f.Root, f.Path)
}

// ChangeType represents the type of file change.
type ChangeType int

const (
	// ChangeCreated indicates a new file.
	ChangeCreated ChangeType = iota

	// ChangeUpdated indicates a modified file.
	ChangeUpdated

	// ChangeDeleted indicates a removed or renamed file.
	ChangeDeleted
)

// String returns a short name for logs.
func (c ChangeType) String() string {
	switch c {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// FileChange represents a change event from a watching connector.
type FileChange struct {
	// Type is the kind of change.
	Type ChangeType

	// File is the affected file.
	File SourceFile
}
