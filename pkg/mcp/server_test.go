package mcp_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/vmls/pkg/execute"
	"github.com/walteh/vmls/pkg/inventory"
	"github.com/walteh/vmls/pkg/mcp"
	"github.com/walteh/vmls/pkg/virsh"
	"github.com/walteh/vmls/pkg/vm"
	"github.com/walteh/vmls/pkg/vm/vmtest"
)

func newServer(t *testing.T) *mcp.Server {
	t.Helper()

	f := vmtest.Root(execute.NewFakeRunner())
	vmtest.Names(f, []string{"web-1", "db-1", "web-2"}, []string{"web-1"})
	vmtest.Script(f, vmtest.Domain{Name: "web-1", Device: "vnet0", MAC: "52:54:00:00:00:01", IP: "10.0.0.1", State: "running"})
	vmtest.Script(f, vmtest.Domain{Name: "db-1", State: "shut off"})
	vmtest.Script(f, vmtest.Domain{Name: "web-2", State: "shut off"})

	client := virsh.NewClient(f, "", "")
	inv := inventory.New(client, vm.NewBuilder(client, vm.NewArtifactStore(t.TempDir())), 2)
	return mcp.NewServer(context.Background(), inv)
}

func request(name string, args map[string]any) mcpgo.CallToolRequest {
	req := mcpgo.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcpgo.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	switch c := res.Content[0].(type) {
	case mcpgo.TextContent:
		return c.Text
	case *mcpgo.TextContent:
		return c.Text
	default:
		t.Fatalf("unexpected content %T", c)
		return ""
	}
}

func TestListVMs(t *testing.T) {
	s := newServer(t)

	res, err := s.ListVMs(context.Background(), request(mcp.ToolListVMs, map[string]any{"running": true}))
	require.NoError(t, err)

	var out struct {
		Count int       `json:"count"`
		VMs   []vm.View `json:"vms"`
	}
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	assert.Equal(t, 1, out.Count)
	require.Len(t, out.VMs, 1)
	assert.Equal(t, "web-1", out.VMs[0].Name)
	assert.Equal(t, []string{"10.0.0.1"}, out.VMs[0].IPAddresses)

	res, err = s.ListVMs(context.Background(), request(mcp.ToolListVMs, nil))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	assert.Equal(t, 3, out.Count)
}

func TestFindVMs(t *testing.T) {
	s := newServer(t)

	res, err := s.FindVMs(context.Background(), request(mcp.ToolFindVMs, map[string]any{"filter": "web"}))
	require.NoError(t, err)

	var out struct {
		Pattern string   `json:"pattern"`
		Names   []string `json:"names"`
	}
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	assert.Equal(t, ".*web.*", out.Pattern)
	assert.Equal(t, []string{"web-1", "web-2"}, out.Names)

	_, err = s.FindVMs(context.Background(), request(mcp.ToolFindVMs, map[string]any{}))
	require.Error(t, err, "filter is required")
}

func TestMCPServerRegistersTools(t *testing.T) {
	assert.NotNil(t, newServer(t).MCPServer("vmls", "test"))
}

func TestSessionLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	logger, closeLog, err := mcp.SessionLogger(dir, "debug")
	require.NoError(t, err)

	logger.Info().Msg("hello")
	require.NoError(t, closeLog())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"hello"`)
	assert.Contains(t, string(data), `"mode":"stdio"`)
}
