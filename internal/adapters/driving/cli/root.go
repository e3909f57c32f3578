// Package cli provides the sibila command line interface.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sibila/internal/core/ports/driving"
	"github.com/custodia-labs/sibila/internal/logger"
	"github.com/custodia-labs/sibila/internal/metrics"
)

// version is set at build time.
var version = "dev"

// Global flags.
var (
	verbose   bool
	configDir string
)

// Services are the core ports the commands drive.
type Services struct {
	Query     driving.QueryService
	Ingester  driving.IngestionService
	Folder    driving.FolderIngester
	Documents driving.DocumentService
	Settings  driving.SettingsService
	Metrics   *metrics.Metrics

	// FolderFor builds a folder ingester that feeds another ingestion
	// service, used to push a folder to a remote server.
	FolderFor func(driving.IngestionService) driving.FolderIngester

	// DataDir holds uploads received by the HTTP server.
	DataDir string

	// Addr is the configured HTTP listen address.
	Addr string
}

// Bootstrap builds the services for a configuration directory ("" means
// the default). With settingsOnly only the settings service is needed,
// so a broken embedding or index configuration can still be repaired.
// The returned function releases the services.
type Bootstrap func(ctx context.Context, configDir string, settingsOnly bool) (*Services, func(), error)

// Services used by the commands. Tests replace them with mocks.
var (
	queryService     driving.QueryService
	ingestionService driving.IngestionService
	folderIngester   driving.FolderIngester
	documentService  driving.DocumentService
	settingsService  driving.SettingsService
	metricsRegistry  *metrics.Metrics
	folderFor        func(driving.IngestionService) driving.FolderIngester
	dataDir          string
	serverAddr       string

	bootstrap Bootstrap
	release   func()
)

// servicesAnnotation selects what a command needs built before it runs.
const (
	servicesAnnotation = "services"
	servicesNone       = "none"
	servicesSettings   = "settings"
)

var rootCmd = &cobra.Command{
	Use:   "sibila",
	Short: "Semantic search over court decisions",
	Long: `sibila indexes legal documents (sentencias, autos, resoluciones) and
answers natural-language questions with the most relevant passages.

Documents are split into overlapping chunks, embedded and stored in a
vector index together with their metadata (tribunal, fecha, materia...),
so searches can be restricted with metadata filters.`,
	SilenceUsage:      true,
	PersistentPreRunE: initServices,
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		Close()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.sibila)")
}

// initServices configures logging and, when a bootstrap is set, builds
// the services for the selected configuration directory.
func initServices(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	need := cmd.Annotations[servicesAnnotation]
	if bootstrap == nil || need == servicesNone {
		return nil
	}

	svc, done, err := bootstrap(cmd.Context(), configDir, need == servicesSettings)
	if err != nil {
		return fmt.Errorf("starting sibila: %w", err)
	}
	SetServices(svc)
	release = done
	return nil
}

// SetServices injects the services used by the commands.
func SetServices(s *Services) {
	if s == nil {
		s = &Services{}
	}
	queryService = s.Query
	ingestionService = s.Ingester
	folderIngester = s.Folder
	documentService = s.Documents
	settingsService = s.Settings
	metricsRegistry = s.Metrics
	folderFor = s.FolderFor
	dataDir = s.DataDir
	serverAddr = s.Addr
}

// SetBootstrap sets the function that builds services before a command runs.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// SetVersion sets the version reported by "sibila version".
func SetVersion(v string) {
	version = v
}

// Close releases services built by the bootstrap. It is safe to call
// more than once.
func Close() {
	if release != nil {
		release()
		release = nil
	}
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	defer Close()
	return rootCmd.ExecuteContext(ctx)
}
