package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/compass/internal/llm"
	"github.com/leapstack-labs/compass/pkg/core"
)

// Describer annotates column descriptors with prose descriptions.
type Describer interface {
	Describe(ctx context.Context, relation string, cols []core.ColumnDescriptor) error
}

const describeSystem = `You document warehouse columns. For each column you are given,
write one short sentence describing what the column likely holds, based on its name,
type, and the relation it belongs to. Reply with a single JSON object mapping column
names to descriptions. No prose outside the JSON.`

// LLMDescriber asks the model for one-line column descriptions, one
// relation per request.
type LLMDescriber struct {
	client llm.Client
	logger *slog.Logger
}

// NewLLMDescriber builds a describer over an LLM client.
func NewLLMDescriber(client llm.Client, logger *slog.Logger) *LLMDescriber {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LLMDescriber{client: client, logger: logger}
}

// Describe fills the Description of each descriptor in place. Columns
// the model does not mention keep an empty description.
func (d *LLMDescriber) Describe(ctx context.Context, relation string, cols []core.ColumnDescriptor) error {
	if len(cols) == 0 {
		return nil
	}

	resp, err := d.client.Complete(ctx, &llm.Request{
		System:   describeSystem,
		Messages: []llm.Message{llm.UserText(describePrompt(relation, cols))},
	})
	if err != nil {
		return fmt.Errorf("description request failed: %w", err)
	}

	descriptions, err := parseDescriptions(resp.Text())
	if err != nil {
		return fmt.Errorf("failed to parse descriptions for %s: %w", relation, err)
	}

	matched := 0
	for i := range cols {
		if desc, ok := descriptions[columnOf(relation, cols[i].QualifiedName)]; ok {
			cols[i].Description = desc
			matched++
		}
	}
	d.logger.Debug("columns described",
		slog.String("relation", relation),
		slog.Int("columns", len(cols)),
		slog.Int("described", matched))
	return nil
}

func describePrompt(relation string, cols []core.ColumnDescriptor) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Relation: %s\nColumns:\n", relation)
	for _, col := range cols {
		fmt.Fprintf(&b, "- %s (%s)\n", columnOf(relation, col.QualifiedName), col.DataType)
	}
	return b.String()
}

// parseDescriptions extracts the JSON object from the reply, tolerating
// code fences and surrounding prose.
func parseDescriptions(text string) (map[string]string, error) {
	open := strings.Index(text, "{")
	closing := strings.LastIndex(text, "}")
	if open < 0 || closing < open {
		return nil, fmt.Errorf("reply contains no JSON object")
	}

	out := make(map[string]string)
	if err := json.Unmarshal([]byte(text[open:closing+1]), &out); err != nil {
		return nil, fmt.Errorf("invalid JSON object: %w", err)
	}
	return out, nil
}

// columnOf strips the relation prefix from a descriptor key.
func columnOf(relation, qualifiedName string) string {
	return strings.TrimPrefix(qualifiedName, relation+".")
}
