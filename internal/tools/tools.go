// Package tools abstracts the external tool surface offered to the
// reasoning loops.
//
// A Source hands out live tool descriptors and executes calls. The MCP
// implementation connects to Model Context Protocol servers over stdio
// or streamable HTTP; Multi merges several sources behind one facade.
package tools

import "context"

// Descriptor describes one callable tool.
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// Result is the outcome of a single tool call. IsError marks failures
// reported by the tool itself, as opposed to transport failures which
// surface as Go errors.
type Result struct {
	Content string
	IsError bool
}

// Source provides tools for a reasoning run. Descriptors are fetched
// live at the start of every run; implementations must not serve a
// stale cached registry.
type Source interface {
	// List fetches the current tool descriptors.
	List(ctx context.Context) ([]Descriptor, error)

	// Call executes a named tool. The returned error covers transport
	// and protocol failures only; tool-reported failures come back as a
	// Result with IsError set.
	Call(ctx context.Context, name string, args map[string]any) (*Result, error)

	// Close releases the underlying connection.
	Close() error
}
