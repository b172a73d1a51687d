// Package llm defines the model client used by the reasoning loops and
// provides an implementation for Anthropic-compatible message APIs.
//
// The surface is deliberately small: a Request carries the system
// prompt, conversation history, and tool definitions; a Response
// carries content blocks and the stop reason. Everything wire-specific
// stays inside the concrete client.
package llm

import (
	"context"
	"strings"
)

// Stop reasons reported by the model.
const (
	StopEndTurn   = "end_turn"
	StopToolUse   = "tool_use"
	StopMaxTokens = "max_tokens"
)

// Content block types.
const (
	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// Client is a conversational model endpoint.
type Client interface {
	// Complete sends the full conversation and returns the model's next
	// turn. Implementations honor context cancellation.
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// Request is a single completion call.
type Request struct {
	System      string
	Messages    []Message
	Tools       []Tool
	MaxTokens   int
	Temperature float64
}

// Message is one conversation turn.
type Message struct {
	Role    string
	Content []ContentBlock
}

// ContentBlock is a typed fragment of a message. Which fields are set
// depends on Type.
type ContentBlock struct {
	Type      string
	Text      string
	ID        string
	Name      string
	Input     map[string]any
	ToolUseID string
	Content   string
	IsError   bool
}

// Tool describes a callable tool offered to the model.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Response is the model's turn.
type Response struct {
	Content    []ContentBlock
	StopReason string
}

// ToolUse is a tool invocation the model requested.
type ToolUse struct {
	ID    string
	Name  string
	Input map[string]any
}

// UserText builds a user message holding a single text block.
func UserText(text string) Message {
	return Message{
		Role:    "user",
		Content: []ContentBlock{{Type: BlockText, Text: text}},
	}
}

// AssistantTurn wraps response content as the assistant message to
// append to the conversation history.
func AssistantTurn(content []ContentBlock) Message {
	return Message{Role: "assistant", Content: content}
}

// ToolResults builds the user message that answers tool invocations.
func ToolResults(blocks []ContentBlock) Message {
	return Message{Role: "user", Content: blocks}
}

// ToolResultBlock builds a single tool_result block for the given
// invocation id.
func ToolResultBlock(toolUseID, content string, isError bool) ContentBlock {
	return ContentBlock{
		Type:      BlockToolResult,
		ToolUseID: toolUseID,
		Content:   content,
		IsError:   isError,
	}
}

// Text returns all text blocks concatenated, trimmed.
func (r *Response) Text() string {
	var b strings.Builder
	for _, block := range r.Content {
		if block.Type == BlockText {
			b.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

// ToolUses returns the tool invocations requested in this turn, in
// order of appearance.
func (r *Response) ToolUses() []ToolUse {
	var uses []ToolUse
	for _, block := range r.Content {
		if block.Type == BlockToolUse {
			uses = append(uses, ToolUse{ID: block.ID, Name: block.Name, Input: block.Input})
		}
	}
	return uses
}
