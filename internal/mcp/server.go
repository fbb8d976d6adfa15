// Package mcp exposes the same admin surface as internal/api/grpc
// (list actors, reactor/pool stats, post an event) as Model Context
// Protocol tools, so an LLM agent can introspect and drive a running
// reactor.Scheduler directly.
package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/solidframe/solidframe/internal/reactor"
	"github.com/solidframe/solidframe/internal/store"
)

// Server wraps the MCP server with a reactor scheduler and an optional
// audit store.
type Server struct {
	server     *mcp.Server
	sched      *reactor.Scheduler
	auditStore *store.Store
}

// Config holds configuration for the MCP server.
type Config struct {
	// Scheduler is the reactor scheduler to introspect and drive.
	Scheduler *reactor.Scheduler

	// AuditStore is optional; when set, post_event audits the posted
	// event to the actor audit trail.
	AuditStore *store.Store
}

// NewServer creates a new MCP server wrapping sched, with no audit
// store.
func NewServer(sched *reactor.Scheduler) *Server {
	return NewServerWithConfig(Config{Scheduler: sched})
}

// NewServerWithConfig creates a new MCP server with the given
// configuration.
func NewServerWithConfig(cfg Config) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "solidframe",
		Version: "0.1.0",
	}, nil)

	s := &Server{
		server:     mcpServer,
		sched:      cfg.Scheduler,
		auditStore: cfg.AuditStore,
	}

	s.registerTools()

	return s
}

// Run starts the MCP server on the given transport.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}

// registerTools registers the admin tool surface.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_actors",
		Description: "List every actor hosted across every reactor, with state and event mask",
	}, s.handleListActors)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "reactor_stats",
		Description: "Report per-reactor load",
	}, s.handleReactorStats)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "buffer_pool_stats",
		Description: "Report per-reactor, per-size-class buffer pool accounting",
	}, s.handleBufferPoolStats)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "post_event",
		Description: "Post an event mask to a specific actor",
	}, s.handlePostEvent)
}
