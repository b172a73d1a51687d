package tools

import (
	"context"
	"fmt"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/compass/internal/testutil"
)

type listTablesInput struct {
	Schema string `json:"schema"`
}

// newFakeWarehouseServer builds an MCP server with two tools: one that
// succeeds and one that always reports a tool-level error.
func newFakeWarehouseServer() *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "fake-warehouse", Version: "0.1.0"}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_tables",
		Description: "List tables in a schema",
	}, func(_ context.Context, _ *mcp.CallToolRequest, input listTablesInput) (*mcp.CallToolResult, any, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("tables in %s: orders, customers", input.Schema)}},
		}, nil, nil
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "broken_probe",
		Description: "Always fails",
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "probe target unreachable"}},
			IsError: true,
		}, nil, nil
	})

	return srv
}

func newConnectedSource(t *testing.T) *MCPSource {
	t.Helper()
	ctx := context.Background()

	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	srv := newFakeWarehouseServer()
	_, err := srv.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	source := NewMCPSource(MCPConfig{Name: "fake"}, testutil.NewTestLogger(t))
	require.NoError(t, source.ConnectTransport(ctx, clientTransport))
	t.Cleanup(func() { _ = source.Close() })

	return source
}

func TestMCPSourceList(t *testing.T) {
	source := newConnectedSource(t)

	descriptors, err := source.List(context.Background())
	require.NoError(t, err)
	require.Len(t, descriptors, 2)

	byName := make(map[string]Descriptor)
	for _, d := range descriptors {
		byName[d.Name] = d
	}

	lt, ok := byName["list_tables"]
	require.True(t, ok, "list_tables must be offered")
	assert.Equal(t, "List tables in a schema", lt.Description)
	require.NotNil(t, lt.InputSchema)
	assert.Equal(t, "object", lt.InputSchema["type"])
}

func TestMCPSourceCall(t *testing.T) {
	source := newConnectedSource(t)

	result, err := source.Call(context.Background(), "list_tables", map[string]any{"schema": "raw"})
	require.NoError(t, err)

	assert.False(t, result.IsError)
	assert.Contains(t, result.Content, "tables in raw")
}

func TestMCPSourceCallToolError(t *testing.T) {
	source := newConnectedSource(t)

	result, err := source.Call(context.Background(), "broken_probe", nil)
	require.NoError(t, err, "tool-level failure is not a transport error")

	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "unreachable")
}

func TestMCPSourceNotConnected(t *testing.T) {
	source := NewMCPSource(MCPConfig{Name: "offline"}, nil)

	_, err := source.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")

	_, err = source.Call(context.Background(), "anything", nil)
	require.Error(t, err)
}

func TestMCPSourceConnectRequiresTransportConfig(t *testing.T) {
	source := NewMCPSource(MCPConfig{Name: "misconfigured"}, nil)

	err := source.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "neither command nor url")
}

func TestMCPSourceCloseWithoutConnect(t *testing.T) {
	source := NewMCPSource(MCPConfig{Name: "idle"}, nil)
	assert.NoError(t, source.Close())
}
