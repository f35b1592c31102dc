package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vmemd/internal/autosave"
	"github.com/fyrsmithlabs/vmemd/internal/retention"
	"github.com/fyrsmithlabs/vmemd/pkg/client"
)

// Server bridges MCP tool calls to the memory daemon's HTTP API.
type Server struct {
	mcp        *mcp.Server
	api        *client.Client
	retention  *retention.Store
	autosave   *autosave.Store
	projectID  string
	projectDir string
	redact     bool
	logger     *zap.Logger
	metrics    *Metrics
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "vmem").
	Name string

	// Version is the server version (default: "dev").
	Version string

	// ProjectID selects the project partition for tools called without
	// global=true. Empty means only the global partition is addressable.
	ProjectID string

	// ProjectDir is searched for the project secret allowlist.
	ProjectDir string

	// Redact enables secret scrubbing on save paths.
	Redact bool

	// Logger for structured logging.
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "vmem",
		Version: "dev",
		Redact:  true,
		Logger:  zap.NewNop(),
	}
}

// NewServer creates an MCP server backed by the given API client and
// retention store. The autosave store is optional; without it
// memory_status reports auto-save mode "off".
func NewServer(cfg *Config, api *client.Client, store *retention.Store, saves *autosave.Store) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if api == nil {
		return nil, fmt.Errorf("api client is required")
	}
	if store == nil {
		return nil, fmt.Errorf("retention store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		},
		nil,
	)

	s := &Server{
		mcp:        mcpServer,
		api:        api,
		retention:  store,
		autosave:   saves,
		projectID:  cfg.ProjectID,
		projectDir: cfg.ProjectDir,
		redact:     cfg.Redact,
		logger:     logger,
		metrics:    NewMetrics(logger),
	}

	s.registerTools()

	return s, nil
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport",
		zap.String("project_id", s.projectID),
		zap.Bool("redact", s.redact))
	transport := &mcp.StdioTransport{}
	if err := s.mcp.Run(ctx, transport); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}
