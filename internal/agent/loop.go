// Package agent runs the tool-calling conversation loop: it offers the
// model a live tool registry, executes the calls the model requests,
// feeds results back, and returns the model's final answer.
//
// Tool names requested by the model are resolved against the registry
// with a fuzzy fallback, so minor misspellings route to the intended
// tool instead of failing the run. Execution failures never abort the
// loop; they are reported back to the model as error results.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/compass/internal/llm"
	"github.com/leapstack-labs/compass/internal/tools"
)

// Config wires a loop together.
type Config struct {
	Client llm.Client
	Source tools.Source

	// System describes the caller's role. It is sent after a shared
	// tool-use preamble.
	System      string
	Temperature float64

	// MaxTurns caps model round-trips per run. Zero means unbounded.
	MaxTurns int

	Logger *slog.Logger
}

// Loop is a reusable tool-calling runner. Each Run starts a fresh
// conversation and fetches a fresh tool registry.
type Loop struct {
	cfg    Config
	logger *slog.Logger
}

// Execution records one tool invocation made during a run.
type Execution struct {
	Requested string `json:"requested"`
	Resolved  string `json:"resolved,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// Result is the outcome of a completed run.
type Result struct {
	FinalText  string      `json:"final_text"`
	Turns      int         `json:"turns"`
	Executions []Execution `json:"executions,omitempty"`
}

// toolPreamble is prepended to every system prompt so callers only
// describe their domain role, not the tool-use mechanics.
const toolPreamble = "You have access to tools. Call a tool whenever it helps answer the request, and reply in plain text once you have the answer."

// New validates the config and builds a loop.
func New(cfg Config) (*Loop, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("agent requires a model client")
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("agent requires a tool source")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Loop{cfg: cfg, logger: cfg.Logger}, nil
}

// Run drives the conversation until the model stops requesting tools.
// Fetching the tool registry is mandatory: if it fails, the run fails.
func (l *Loop) Run(ctx context.Context, prompt string) (*Result, error) {
	descriptors, err := l.cfg.Source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tool registry: %w", err)
	}

	offered := make([]llm.Tool, 0, len(descriptors))
	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		offered = append(offered, llm.Tool{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema,
		})
		names = append(names, d.Name)
	}
	l.logger.Debug("tool registry fetched", "tools", len(names))

	system := toolPreamble
	if l.cfg.System != "" {
		system += "\n\n" + l.cfg.System
	}

	result := &Result{}
	messages := []llm.Message{llm.UserText(prompt)}

	for {
		if l.cfg.MaxTurns > 0 && result.Turns >= l.cfg.MaxTurns {
			return nil, fmt.Errorf("no final answer after %d turns", result.Turns)
		}
		result.Turns++

		resp, err := l.cfg.Client.Complete(ctx, &llm.Request{
			System:      system,
			Messages:    messages,
			Tools:       offered,
			Temperature: l.cfg.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("model turn failed: %w", err)
		}

		uses := resp.ToolUses()
		if len(uses) == 0 {
			result.FinalText = stripReasoning(resp.Text())
			l.logger.Debug("run finished",
				"turns", result.Turns,
				"tool_calls", len(result.Executions))
			return result, nil
		}

		messages = append(messages, llm.AssistantTurn(resp.Content))
		blocks := make([]llm.ContentBlock, 0, len(uses))
		for _, use := range uses {
			block, exec := l.execute(ctx, use, names)
			blocks = append(blocks, block)
			result.Executions = append(result.Executions, exec)
		}
		messages = append(messages, llm.ToolResults(blocks))
	}
}

// execute runs one requested tool call and renders it as a tool_result
// block. Every failure mode ends up in the block content so the model
// can react to it.
func (l *Loop) execute(ctx context.Context, use llm.ToolUse, names []string) (llm.ContentBlock, Execution) {
	exec := Execution{Requested: use.Name}

	resolved, ok := resolveTool(use.Name, names)
	if !ok {
		l.logger.Warn("requested tool not found", "tool", use.Name)
		exec.IsError = true
		return llm.ToolResultBlock(use.ID, fmt.Sprintf("tool %q not found", use.Name), true), exec
	}
	exec.Resolved = resolved
	if resolved != use.Name {
		l.logger.Debug("fuzzy-resolved tool name", "requested", use.Name, "resolved", resolved)
	}

	res, err := l.cfg.Source.Call(ctx, resolved, use.Input)
	if err != nil {
		l.logger.Warn("tool execution failed", "tool", resolved, "error", err)
		exec.IsError = true
		return llm.ToolResultBlock(use.ID, fmt.Sprintf("tool %q failed: %v", resolved, err), true), exec
	}

	exec.IsError = res.IsError
	l.logger.Debug("tool executed", "tool", resolved, "is_error", res.IsError)
	return llm.ToolResultBlock(use.ID, res.Content, res.IsError), exec
}

// stripReasoning removes <thinking> spans from the final answer. An
// unterminated span drops everything from its opening tag onward.
func stripReasoning(text string) string {
	const openTag, closeTag = "<thinking>", "</thinking>"

	var b strings.Builder
	for {
		start := strings.Index(text, openTag)
		if start < 0 {
			b.WriteString(text)
			break
		}
		b.WriteString(text[:start])
		rest := text[start+len(openTag):]
		end := strings.Index(rest, closeTag)
		if end < 0 {
			break
		}
		text = rest[end+len(closeTag):]
	}
	return strings.TrimSpace(b.String())
}
