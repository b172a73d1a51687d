package commands

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/compass/internal/cli/output"
	"github.com/leapstack-labs/compass/internal/cli/testutil"
)

func TestToolsText(t *testing.T) {
	infos := []output.ToolInfo{
		{Name: "query_docs", Description: "Search the warehouse documentation"},
		{Name: "list_metrics", Description: "List defined metrics"},
	}

	tr := testutil.NewTestRendererText()
	err := toolsText(tr.Renderer, infos)
	require.NoError(t, err)

	out := tr.Output()
	testutil.AssertContains(t, out, "Tools (2 available)")
	testutil.AssertContains(t, out, "query_docs")
	testutil.AssertContains(t, out, "Search the warehouse documentation")
}

func TestToolsText_Empty(t *testing.T) {
	tr := testutil.NewTestRendererText()
	err := toolsText(tr.Renderer, nil)
	require.NoError(t, err)

	out := tr.Output()
	testutil.AssertContains(t, out, "Tools (0 available)")
	testutil.AssertContains(t, out, "No tool servers configured")
}

func TestToolsMarkdown(t *testing.T) {
	infos := []output.ToolInfo{
		{Name: "query_docs", Description: "Search the warehouse documentation"},
	}

	tr := testutil.NewTestRendererMarkdown()
	err := toolsMarkdown(tr.Renderer, infos)
	require.NoError(t, err)

	out := tr.Output()
	testutil.AssertContains(t, out, "# Tools (1 available)")
	testutil.AssertContains(t, out, "- **query_docs** - Search the warehouse documentation")
	testutil.AssertNoANSI(t, out)
	testutil.AssertValidMarkdown(t, out)
}
