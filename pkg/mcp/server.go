// Package mcp exposes the inventory as read-only Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/walteh/vmls/pkg/inventory"
	"github.com/walteh/vmls/pkg/vm"
	"gitlab.com/tozd/go/errors"
)

const (
	ToolListVMs = "list_vms"
	ToolFindVMs = "find_vms"
)

// Server answers tool calls from an Inventory. Calls are serialized because every
// listing rebuilds the shared record set.
type Server struct {
	inv    *inventory.Inventory
	logger zerolog.Logger
	calls  chan struct{}
}

func NewServer(ctx context.Context, inv *inventory.Inventory) *Server {
	s := &Server{
		inv:    inv,
		logger: zerolog.Ctx(ctx).With().Str("component", "mcp").Logger(),
		calls:  make(chan struct{}, 1),
	}
	return s
}

// MCPServer registers the tools on a fresh mcp-go server.
func (s *Server) MCPServer(name, version string) *server.MCPServer {
	srv := server.NewMCPServer(name, version)

	srv.AddTool(mcp.NewTool(ToolListVMs,
		mcp.WithDescription("List virtual machines with their network device, MAC and IP addresses, disks and power state"),
		mcp.WithBoolean("running",
			mcp.Description("Only list running machines"),
		),
	), s.ListVMs)

	srv.AddTool(mcp.NewTool(ToolFindVMs,
		mcp.WithDescription("Find virtual machine names. A filter starting with ^ or containing * is a regular expression, anything else matches as a substring"),
		mcp.WithString("filter",
			mcp.Required(),
			mcp.Description("Substring or regular expression"),
		),
	), s.FindVMs)

	return srv
}

func (s *Server) acquire(ctx context.Context) (func(), error) {
	select {
	case s.calls <- struct{}{}:
		return func() { <-s.calls }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ListVMs handles list_vms.
func (s *Server) ListVMs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = s.logger.WithContext(ctx)

	running, _ := request.Params.Arguments["running"].(bool)

	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if running {
		_, err = s.inv.ListRunning(ctx)
	} else {
		_, err = s.inv.ListAll(ctx)
	}
	if err != nil {
		s.logger.Error().Err(err).Bool("running", running).Msg("Listing domains failed")
		return nil, errors.Errorf("listing domains: %w", err)
	}

	views := make([]vm.View, 0, s.inv.Count())
	for _, r := range s.inv.Records() {
		views = append(views, r.View())
	}

	failures := make(map[string]string)
	for _, f := range s.inv.Failures() {
		failures[f.Name] = f.Err.Error()
	}

	return jsonResult(map[string]any{
		"count":    len(views),
		"vms":      views,
		"failures": failures,
	})
}

// FindVMs handles find_vms.
func (s *Server) FindVMs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = s.logger.WithContext(ctx)

	filter, ok := request.Params.Arguments["filter"].(string)
	if !ok || filter == "" {
		return nil, errors.New("filter parameter is required")
	}

	names, err := s.inv.Find(ctx, filter)
	if err != nil {
		return nil, errors.Errorf("finding domains: %w", err)
	}
	if names == nil {
		names = []string{}
	}

	return jsonResult(map[string]any{
		"pattern": inventory.Pattern(filter),
		"names":   names,
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errors.Errorf("marshalling result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
