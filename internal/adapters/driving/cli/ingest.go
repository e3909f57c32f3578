package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sibila/internal/adapters/driven/remote"
	"github.com/custodia-labs/sibila/internal/core/domain"
	"github.com/custodia-labs/sibila/internal/core/ports/driving"
)

// defaultIngestFolder is used when no folder argument is given and
// INGEST_FOLDER is unset.
const defaultIngestFolder = "./data"

var (
	ingestWatch  bool
	ingestRemote string
	ingestToken  string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [folder]",
	Short: "Ingest a folder of documents",
	Long: `Scans a folder recursively and ingests every .txt, .md, .pdf, .html and
.docx file. Metadata is read from a sidecar next to each file
(<name>.meta.json or <name>.meta.yaml); the file name is always recorded.

The folder defaults to $INGEST_FOLDER, or ./data when unset.

With --watch the folder is kept in sync until interrupted: new and changed
files are re-ingested and deleted files are removed from the index.

With --remote the extracted documents are posted to a running sibila
server instead of being indexed locally.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "keep watching the folder for changes")
	ingestCmd.Flags().StringVar(&ingestRemote, "remote", "", "base URL of a sibila server to push documents to")
	ingestCmd.Flags().StringVar(&ingestToken, "token", "", "bearer token for --remote (default $API_BEARER_TOKEN)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	folder, err := ingestFolder(args)
	if err != nil {
		return err
	}

	ingester, err := selectFolderIngester()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	target := "index"
	if ingestRemote != "" {
		target = ingestRemote
	}
	cmd.Printf("Ingesting %s into %s...\n", folder, target)

	summary, err := ingester.IngestFolder(ctx, folder)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	printSummary(cmd, summary)

	if !ingestWatch {
		if n := len(summary.Failures); n > 0 {
			return fmt.Errorf("%d files failed to ingest", n)
		}
		return nil
	}

	cmd.Printf("Watching %s for changes (Ctrl+C to stop)...\n", folder)
	return watchFolder(ctx, cmd, ingester, folder)
}

// ingestFolder resolves and checks the folder to ingest.
func ingestFolder(args []string) (string, error) {
	folder := defaultIngestFolder
	if env := os.Getenv("INGEST_FOLDER"); env != "" {
		folder = env
	}
	if len(args) > 0 {
		folder = args[0]
	}

	info, err := os.Stat(folder)
	if err != nil {
		return "", fmt.Errorf("folder %s: %w", folder, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a folder", folder)
	}
	return folder, nil
}

// selectFolderIngester returns the local folder ingester, or one that
// pushes to the --remote server.
func selectFolderIngester() (driving.FolderIngester, error) {
	if ingestRemote == "" {
		if folderIngester == nil {
			return nil, errors.New("ingestion service not configured")
		}
		return folderIngester, nil
	}

	if folderFor == nil {
		return nil, errors.New("remote ingestion not configured")
	}
	token := ingestToken
	if token == "" {
		token = os.Getenv("API_BEARER_TOKEN")
	}
	return folderFor(remote.NewIngester(remote.Config{
		BaseURL: ingestRemote,
		Token:   token,
	})), nil
}

func printSummary(cmd *cobra.Command, summary *domain.FolderSummary) {
	cmd.Println()
	cmd.Printf("  Files seen:     %d\n", summary.FilesSeen)
	cmd.Printf("  Ingested:       %d\n", summary.DocumentsIngested)
	cmd.Printf("  Skipped:        %d\n", summary.DocumentsSkipped)
	cmd.Printf("  Chunks written: %d\n", summary.ChunksUpserted)

	if len(summary.Failures) > 0 {
		cmd.Printf("\nFailures (%d):\n", len(summary.Failures))
		for _, f := range summary.Failures {
			cmd.Printf("  %s [%s] %s\n", f.Path, f.Kind, f.Err)
		}
	}
	cmd.Println()
}

// watchFolder prints each processed change until ctx is cancelled.
func watchFolder(ctx context.Context, cmd *cobra.Command, ingester driving.FolderIngester, folder string) error {
	err := ingester.Watch(ctx, folder, func(change domain.FileChange, err error) {
		if err != nil {
			cmd.Printf("  %-8s %s: %v\n", change.Type, change.File.Path, err)
			return
		}
		cmd.Printf("  %-8s %s\n", change.Type, change.File.Path)
	})
	if err != nil {
		return fmt.Errorf("watch failed: %w", err)
	}
	cmd.Println("Stopped watching.")
	return nil
}
