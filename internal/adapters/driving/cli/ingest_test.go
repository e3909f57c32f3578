package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sibila/internal/core/domain"
	"github.com/custodia-labs/sibila/internal/core/ports/driving"
)

func TestIngestCmd_Folder(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	dir := t.TempDir()

	out, err := executeCommand("ingest", dir)

	require.NoError(t, err)
	assert.Equal(t, []string{dir}, current.folder.roots)
	assert.Contains(t, out, "Ingesting "+dir+" into index...")
	assert.Contains(t, out, "Files seen:     2")
	assert.Contains(t, out, "Chunks written: 5")
	assert.Empty(t, current.folder.watched)
}

func TestIngestCmd_DefaultsToEnvFolder(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	dir := t.TempDir()
	t.Setenv("INGEST_FOLDER", dir)

	_, err := executeCommand("ingest")

	require.NoError(t, err)
	assert.Equal(t, []string{dir}, current.folder.roots)
}

func TestIngestCmd_MissingFolder(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand("ingest", filepath.Join(t.TempDir(), "nope"))

	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, current.folder.roots)
}

func TestIngestCmd_NotAFolder(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	file := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	_, err := executeCommand("ingest", file)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a folder")
}

func TestIngestCmd_FailuresExitNonZero(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	current.folder.summary = &domain.FolderSummary{
		FilesSeen:         2,
		DocumentsIngested: 1,
		Failures: []domain.FileFailure{
			{Path: "roto.pdf", Kind: domain.KindInvalidArgument, Err: "no text"},
		},
	}

	out, err := executeCommand("ingest", t.TempDir())

	require.Error(t, err)
	assert.Equal(t, "1 files failed to ingest", err.Error())
	assert.Contains(t, out, "Failures (1):")
	assert.Contains(t, out, "roto.pdf [invalid_argument] no text")
}

func TestIngestCmd_IngestError(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	current.folder.err = domain.ErrIndexIO

	_, err := executeCommand("ingest", t.TempDir())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIndexIO)
}

func TestIngestCmd_Watch(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	dir := t.TempDir()
	current.folder.changes = []domain.FileChange{
		{Type: domain.ChangeCreated, File: domain.SourceFile{Path: filepath.Join(dir, "nueva.txt")}},
		{Type: domain.ChangeDeleted, File: domain.SourceFile{Path: filepath.Join(dir, "locked.txt")}},
	}

	out, err := executeCommand("ingest", dir, "--watch")

	require.NoError(t, err)
	assert.Equal(t, []string{dir}, current.folder.watched)
	assert.Contains(t, out, "Watching "+dir)
	assert.Contains(t, out, "created  "+filepath.Join(dir, "nueva.txt"))
	assert.Contains(t, out, "deleted  "+filepath.Join(dir, "locked.txt")+": index I/O error")
	assert.Contains(t, out, "Stopped watching.")
}

func TestIngestCmd_WatchError(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	current.folder.watchErr = errors.New("inotify limit")

	_, err := executeCommand("ingest", t.TempDir(), "-w")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "watch failed: inotify limit")
}

func TestIngestCmd_Remote(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	var got driving.IngestionService
	folderFor = func(ing driving.IngestionService) driving.FolderIngester {
		got = ing
		return current.folder
	}
	dir := t.TempDir()

	out, err := executeCommand("ingest", dir, "--remote", "http://sibila.local:8000", "--token", "s3cret")

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Contains(t, out, "into http://sibila.local:8000")
	assert.Equal(t, []string{dir}, current.folder.roots)
}

func TestIngestCmd_RemoteNotConfigured(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	folderFor = nil

	_, err := executeCommand("ingest", t.TempDir(), "--remote", "http://x")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote ingestion not configured")
}

func TestIngestCmd_ServiceNotConfigured(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	SetServices(nil)

	_, err := executeCommand("ingest", t.TempDir())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingestion service not configured")
}
