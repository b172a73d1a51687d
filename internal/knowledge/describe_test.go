package knowledge

import (
	"context"
	"testing"

	"github.com/leapstack-labs/compass/internal/llm"
	"github.com/leapstack-labs/compass/internal/testutil"
	"github.com/leapstack-labs/compass/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedLLM returns a fixed response and records requests.
type scriptedLLM struct {
	resp     *llm.Response
	err      error
	requests []*llm.Request
}

func (c *scriptedLLM) Complete(_ context.Context, req *llm.Request) (*llm.Response, error) {
	c.requests = append(c.requests, req)
	if c.err != nil {
		return nil, c.err
	}
	return c.resp, nil
}

func textResponse(text string) *llm.Response {
	return &llm.Response{
		Content:    []llm.ContentBlock{{Type: llm.BlockText, Text: text}},
		StopReason: llm.StopEndTurn,
	}
}

func orderColumns() []core.ColumnDescriptor {
	return []core.ColumnDescriptor{
		{QualifiedName: "analytics.orders.id", DataType: "INTEGER", SchemaName: "analytics"},
		{QualifiedName: "analytics.orders.total", DataType: "DOUBLE", SchemaName: "analytics"},
	}
}

func TestLLMDescriber_Describe(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{
			name:  "plain object",
			reply: `{"id": "Primary key.", "total": "Order value in cents."}`,
		},
		{
			name:  "fenced object",
			reply: "```json\n{\"id\": \"Primary key.\", \"total\": \"Order value in cents.\"}\n```",
		},
		{
			name:  "prose around the object",
			reply: "Here is the documentation you asked for:\n{\"id\": \"Primary key.\", \"total\": \"Order value in cents.\"}\nHope this helps.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &scriptedLLM{resp: textResponse(tt.reply)}
			describer := NewLLMDescriber(client, testutil.NewTestLogger(t))

			cols := orderColumns()
			require.NoError(t, describer.Describe(context.Background(), "analytics.orders", cols))

			assert.Equal(t, "Primary key.", cols[0].Description)
			assert.Equal(t, "Order value in cents.", cols[1].Description)
		})
	}
}

func TestLLMDescriber_Prompt(t *testing.T) {
	client := &scriptedLLM{resp: textResponse(`{"id": "Primary key."}`)}
	describer := NewLLMDescriber(client, testutil.NewTestLogger(t))

	require.NoError(t, describer.Describe(context.Background(), "analytics.orders", orderColumns()))

	require.Len(t, client.requests, 1)
	req := client.requests[0]
	assert.Contains(t, req.System, "JSON object")
	require.Len(t, req.Messages, 1)
	prompt := req.Messages[0].Content[0].Text
	assert.Contains(t, prompt, "Relation: analytics.orders")
	assert.Contains(t, prompt, "- id (INTEGER)")
	assert.Contains(t, prompt, "- total (DOUBLE)")
}

func TestLLMDescriber_UnmentionedColumnsStayEmpty(t *testing.T) {
	client := &scriptedLLM{resp: textResponse(`{"id": "Primary key.", "phantom": "Not a real column."}`)}
	describer := NewLLMDescriber(client, testutil.NewTestLogger(t))

	cols := orderColumns()
	require.NoError(t, describer.Describe(context.Background(), "analytics.orders", cols))

	assert.Equal(t, "Primary key.", cols[0].Description)
	assert.Empty(t, cols[1].Description)
}

func TestLLMDescriber_NoColumns(t *testing.T) {
	client := &scriptedLLM{}
	describer := NewLLMDescriber(client, nil)

	require.NoError(t, describer.Describe(context.Background(), "analytics.orders", nil))
	assert.Empty(t, client.requests)
}

func TestLLMDescriber_RequestFailure(t *testing.T) {
	client := &scriptedLLM{err: assert.AnError}
	describer := NewLLMDescriber(client, testutil.NewTestLogger(t))

	err := describer.Describe(context.Background(), "analytics.orders", orderColumns())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "description request failed")
}

func TestLLMDescriber_UnparseableReply(t *testing.T) {
	client := &scriptedLLM{resp: textResponse("I cannot produce JSON today.")}
	describer := NewLLMDescriber(client, testutil.NewTestLogger(t))

	err := describer.Describe(context.Background(), "analytics.orders", orderColumns())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse descriptions for analytics.orders")
}

func TestParseDescriptions(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      map[string]string
		expectErr string
	}{
		{
			name:  "bare object",
			input: `{"a": "First.", "b": "Second."}`,
			want:  map[string]string{"a": "First.", "b": "Second."},
		},
		{
			name:  "empty object",
			input: `{}`,
			want:  map[string]string{},
		},
		{
			name:      "no object at all",
			input:     "nothing here",
			expectErr: "no JSON object",
		},
		{
			name:      "malformed object",
			input:     `{"a": }`,
			expectErr: "invalid JSON object",
		},
		{
			name:      "closing brace before opening",
			input:     "} {",
			expectErr: "no JSON object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDescriptions(tt.input)
			if tt.expectErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
