package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/compass/internal/cli/output"
	"github.com/leapstack-labs/compass/internal/cli/testutil"
	"github.com/leapstack-labs/compass/pkg/core"
)

func sampleRun() *core.Run {
	started := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	completed := started.Add(42 * time.Second)
	return &core.Run{
		ID:                "run-0001",
		Question:          "What was revenue last month?",
		Status:            core.RunStatusSuccess,
		ApprovedRelations: []string{"marts.fct_revenue", "staging.stg_orders"},
		SQL:               "SELECT sum(amount) FROM marts.fct_revenue",
		StartedAt:         started,
		CompletedAt:       &completed,
	}
}

func TestTruncateOneLine(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{"short stays intact", "revenue by month", 60, "revenue by month"},
		{"newlines collapse", "line one\nline two", 60, "line one line two"},
		{"long gets ellipsis", "abcdefghij", 8, "abcde..."},
		{"exact length stays intact", "abcdefgh", 8, "abcdefgh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, truncateOneLine(tt.in, tt.maxLen))
		})
	}
}

func TestRunsText(t *testing.T) {
	tr := testutil.NewTestRendererText()
	err := runsText(tr.Renderer, []*core.Run{sampleRun()})
	require.NoError(t, err)

	out := tr.Output()
	testutil.AssertContains(t, out, "Runs (1)")
	testutil.AssertContains(t, out, "run-0001")
	testutil.AssertContains(t, out, "success")
	testutil.AssertContains(t, out, "What was revenue last month?")
}

func TestRunsText_Empty(t *testing.T) {
	tr := testutil.NewTestRendererText()
	err := runsText(tr.Renderer, nil)
	require.NoError(t, err)

	testutil.AssertContains(t, tr.Output(), "No runs recorded yet")
}

func TestRunsMarkdown(t *testing.T) {
	tr := testutil.NewTestRendererMarkdown()
	err := runsMarkdown(tr.Renderer, []*core.Run{sampleRun()})
	require.NoError(t, err)

	out := tr.Output()
	testutil.AssertContains(t, out, "# Runs (1)")
	testutil.AssertContains(t, out, "| Started | Status | Relations | Question | ID |")
	testutil.AssertContains(t, out, "`run-0001`")
	testutil.AssertContains(t, out, "2025-03-14T09:30:00Z")
	testutil.AssertNoANSI(t, out)
}

func TestRunText(t *testing.T) {
	run := sampleRun()
	iterations := []core.IterationRecord{
		{Depth: 2, CandidateCount: 1, Verdict: "insufficient", Reasoning: "needs order detail"},
		{Depth: 1, CandidateCount: 3, Verdict: "sufficient"},
	}

	tr := testutil.NewTestRendererText()
	err := runText(tr.Renderer, run, iterations)
	require.NoError(t, err)

	out := tr.Output()
	testutil.AssertContains(t, out, "What was revenue last month?")
	testutil.AssertContains(t, out, "run-0001")
	testutil.AssertContains(t, out, "cutoff 2 (1 relations): insufficient")
	testutil.AssertContains(t, out, "needs order detail")
	testutil.AssertContains(t, out, "marts.fct_revenue")
	testutil.AssertContains(t, out, "SELECT sum(amount)")
}

func TestRunMarkdown_FailedRun(t *testing.T) {
	run := sampleRun()
	run.Status = core.RunStatusFailed
	run.SQL = ""
	run.ApprovedRelations = nil
	run.Error = "warehouse unreachable"

	tr := testutil.NewTestRendererMarkdown()
	err := runMarkdown(tr.Renderer, run, nil)
	require.NoError(t, err)

	out := tr.Output()
	testutil.AssertContains(t, out, "**Status**: failed")
	testutil.AssertContains(t, out, "**Error**: warehouse unreachable")
	testutil.AssertNotContains(t, out, "## SQL")
	testutil.AssertValidMarkdown(t, out)
}

func TestNewRunInfo(t *testing.T) {
	run := sampleRun()
	iterations := []core.IterationRecord{
		{Depth: 2, CandidateCount: 1, Verdict: "insufficient"},
	}

	info := output.NewRunInfo(run, iterations)

	assert.Equal(t, "run-0001", info.ID)
	assert.Equal(t, "success", info.Status)
	assert.Equal(t, "2025-03-14T09:30:00Z", info.StartedAt)
	require.NotEmpty(t, info.CompletedAt)
	assert.Equal(t, []string{"marts.fct_revenue", "staging.stg_orders"}, info.Approved)
	require.Len(t, info.Iterations, 1)
	assert.Equal(t, 2, info.Iterations[0].Depth)

	// Listing surfaces skip the process log.
	lean := output.NewRunInfo(run, nil)
	assert.Empty(t, lean.Iterations)
}
