package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpapi "github.com/custodia-labs/sibila/internal/adapters/driving/http"
	"github.com/custodia-labs/sibila/internal/logger"
)

// shutdownTimeout bounds the graceful shutdown of the HTTP server.
const shutdownTimeout = 10 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the HTTP API:

  POST   /query        semantic search with optional metadata filters
  POST   /ingest       ingest documents posted as JSON
  POST   /upload       upload files and ingest them
  GET    /docs         list ingested documents
  GET    /docs/{id}    show a document
  DELETE /docs/{id}    remove a document
  GET    /categories   distinct document categories
  GET    /cases        distinct case ids
  GET    /health       liveness
  GET    /metrics      Prometheus metrics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default server.addr setting, :8000)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	server, err := newHTTPServer()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()
	cmd.Printf("HTTP API listening on %s\n", listenAddr())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return <-errCh
}

func newHTTPServer() (*httpapi.Server, error) {
	if queryService == nil || ingestionService == nil || documentService == nil {
		return nil, errors.New("services not configured")
	}

	cfg := &httpapi.Config{Addr: listenAddr()}
	if dataDir != "" {
		cfg.UploadDir = filepath.Join(dataDir, "uploads")
	}

	return httpapi.NewServer(httpapi.Services{
		Query:     queryService,
		Ingester:  ingestionService,
		Folder:    folderIngester,
		Documents: documentService,
	}, metricsRegistry, logger.Named("http"), cfg)
}

// listenAddr resolves the flag, then the setting, then the default.
func listenAddr() string {
	switch {
	case serveAddr != "":
		return serveAddr
	case serverAddr != "":
		return serverAddr
	default:
		return ":8000"
	}
}
