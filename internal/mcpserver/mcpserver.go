// Package mcpserver exposes winnow comparisons as MCP tools over stdio.
package mcpserver

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/panbanda/winnow/internal/cache"
	"github.com/panbanda/winnow/internal/logging"
	"github.com/panbanda/winnow/internal/service/detect"
	"github.com/panbanda/winnow/pkg/config"
)

// Server wraps the MCP server and registers the winnow tools.
type Server struct {
	server *mcp.Server
	config *config.Config
	logger *slog.Logger
	cache  *cache.Cache
	detect *detect.Service
}

// Option configures a Server.
type Option func(*Server)

// WithConfig sets the configuration tool defaults come from.
func WithConfig(cfg *config.Config) Option {
	return func(s *Server) {
		s.config = cfg
	}
}

// WithLogger routes detection logs to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithCache shares a token cache across tool calls.
func WithCache(c *cache.Cache) Option {
	return func(s *Server) {
		s.cache = c
	}
}

// NewServer creates a new MCP server with all winnow tools registered.
func NewServer(version string, opts ...Option) *Server {
	if version == "" {
		version = "dev"
	}
	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{Name: "winnow", Version: version}, nil),
		config: config.DefaultConfig(),
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.detect = detect.New(
		detect.WithLogger(s.logger),
		detect.WithWorkers(s.config.Workers.Max),
		detect.WithCache(s.cache))

	s.registerTools()
	s.registerPrompts()
	return s
}

// Run starts the MCP server over stdio transport.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "compare_files",
		Description: describeCompareFiles(),
	}, s.handleCompareFiles)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "compare_directory",
		Description: describeCompareDirectory(),
	}, s.handleCompareDirectory)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_languages",
		Description: describeListLanguages(),
	}, s.handleListLanguages)
}
