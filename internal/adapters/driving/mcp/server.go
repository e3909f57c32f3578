package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/custodia-labs/sibila/internal/logger"
)

// Version is reported to MCP clients during initialisation.
const Version = "0.1.0"

// instructions tell the client how the tools fit together.
const instructions = `Sibila searches a corpus of legal documents by meaning.
Call "search" with a question in natural language; restrict the results with
filters such as {"tribunal": "TS"} or {"materia": ["laboral", "civil"]}.
Read sibila://documents for the catalogue and sibila://documents/{documentId}
for the full text of a ruling.`

// httpShutdownTimeout bounds the graceful stop of the HTTP transport.
const httpShutdownTimeout = 5 * time.Second

// Server exposes the query and ingestion services over MCP.
type Server struct {
	ports  *Ports
	server *mcp.Server
	log    *zap.Logger
}

// NewServer creates an MCP server for ports. Only the query service is
// required; the ingest tool and the document resources are registered
// when their services are present.
func NewServer(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	s := &Server{
		ports: ports,
		server: mcp.NewServer(
			&mcp.Implementation{Name: "sibila", Version: Version},
			&mcp.ServerOptions{Instructions: instructions},
		),
		log: logger.Named("mcp"),
	}
	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run serves MCP over stdio until ctx is cancelled or the client leaves.
func (s *Server) Run(ctx context.Context) error {
	s.log.Debug("serving over stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the streamable HTTP transport on addr until ctx is
// cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("mcp http shutdown", zap.Error(err))
		}
	}()

	s.log.Info("mcp server listening", zap.String("addr", addr))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler returns the streamable HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
}
