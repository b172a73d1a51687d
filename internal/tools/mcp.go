package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MCPConfig describes one MCP server connection. Exactly one of
// Command or URL must be set: Command spawns the server as a child
// process speaking stdio, URL connects to a streamable HTTP endpoint.
type MCPConfig struct {
	Name    string   `koanf:"name"`
	Command string   `koanf:"command"`
	Args    []string `koanf:"args"`
	Env     []string `koanf:"env"`
	URL     string   `koanf:"url"`
}

// MCPSource is a Source backed by a single MCP server session.
type MCPSource struct {
	cfg     MCPConfig
	client  *mcp.Client
	session *mcp.ClientSession
	logger  *slog.Logger
}

// NewMCPSource creates an unconnected source for the given server.
func NewMCPSource(cfg MCPConfig, logger *slog.Logger) *MCPSource {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &MCPSource{
		cfg:    cfg,
		client: mcp.NewClient(&mcp.Implementation{Name: "compass", Version: "1"}, nil),
		logger: logger,
	}
}

// Connect establishes the session using the transport implied by the
// config.
func (s *MCPSource) Connect(ctx context.Context) error {
	transport, err := s.transport(ctx)
	if err != nil {
		return err
	}
	return s.ConnectTransport(ctx, transport)
}

// ConnectTransport establishes the session over an explicit transport.
func (s *MCPSource) ConnectTransport(ctx context.Context, transport mcp.Transport) error {
	session, err := s.client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to mcp server %q: %w", s.cfg.Name, err)
	}
	s.session = session
	s.logger.Debug("mcp session established", "server", s.cfg.Name)
	return nil
}

func (s *MCPSource) transport(ctx context.Context) (mcp.Transport, error) {
	switch {
	case s.cfg.Command != "":
		cmd := exec.CommandContext(ctx, s.cfg.Command, s.cfg.Args...)
		if len(s.cfg.Env) > 0 {
			cmd.Env = append(cmd.Environ(), s.cfg.Env...)
		}
		return &mcp.CommandTransport{Command: cmd}, nil
	case s.cfg.URL != "":
		return &mcp.StreamableClientTransport{Endpoint: s.cfg.URL}, nil
	default:
		return nil, fmt.Errorf("mcp server %q has neither command nor url", s.cfg.Name)
	}
}

// List fetches the server's current tool descriptors.
func (s *MCPSource) List(ctx context.Context) ([]Descriptor, error) {
	if s.session == nil {
		return nil, fmt.Errorf("mcp server %q not connected", s.cfg.Name)
	}

	result, err := s.session.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools from %q: %w", s.cfg.Name, err)
	}

	descriptors := make([]Descriptor, 0, len(result.Tools))
	for _, tool := range result.Tools {
		d := Descriptor{
			Name:        tool.Name,
			Description: tool.Description,
		}
		if tool.InputSchema != nil {
			raw, err := json.Marshal(tool.InputSchema)
			if err != nil {
				return nil, fmt.Errorf("failed to encode schema for tool %q: %w", tool.Name, err)
			}
			var schema map[string]any
			if err := json.Unmarshal(raw, &schema); err != nil {
				return nil, fmt.Errorf("failed to decode schema for tool %q: %w", tool.Name, err)
			}
			d.InputSchema = schema
		}
		descriptors = append(descriptors, d)
	}

	s.logger.Debug("tools listed", "server", s.cfg.Name, "count", len(descriptors))
	return descriptors, nil
}

// Call executes a named tool on the server and flattens its text
// content into a single string.
func (s *MCPSource) Call(ctx context.Context, name string, args map[string]any) (*Result, error) {
	if s.session == nil {
		return nil, fmt.Errorf("mcp server %q not connected", s.cfg.Name)
	}

	result, err := s.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return nil, fmt.Errorf("tool call %q failed: %w", name, err)
	}

	var b strings.Builder
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}

	return &Result{Content: b.String(), IsError: result.IsError}, nil
}

// Close terminates the session.
func (s *MCPSource) Close() error {
	if s.session == nil {
		return nil
	}
	return s.session.Close()
}
