package output

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func newBufRenderer(mode Mode, isTTY bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, isTTY, mode), out, errOut
}

func TestEffectiveModeAutoResolution(t *testing.T) {
	r, _, _ := newBufRenderer(ModeAuto, true)
	assert.Equal(t, ModeText, r.EffectiveMode())

	r, _, _ = newBufRenderer(ModeAuto, false)
	assert.Equal(t, ModeMarkdown, r.EffectiveMode())
}

func TestEffectiveModeExplicit(t *testing.T) {
	for _, mode := range []Mode{ModeText, ModeMarkdown, ModeJSON} {
		r, _, _ := newBufRenderer(mode, false)
		assert.Equal(t, mode, r.EffectiveMode())
	}
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeJSON, ParseMode("json"))
	assert.Equal(t, ModeText, ParseMode(" TEXT "))
	assert.Equal(t, ModeMarkdown, ParseMode("markdown"))
	assert.Equal(t, ModeAuto, ParseMode(""))
	assert.Equal(t, ModeAuto, ParseMode("yaml"))
}

func TestNonTTYOutputHasNoANSI(t *testing.T) {
	r, out, errOut := newBufRenderer(ModeMarkdown, false)
	r.Header(1, "Report")
	r.Success("done")
	r.Warning("careful")
	r.StatusLine("compass.yaml", "success", "")
	r.Muted("detail")

	combined := out.String() + errOut.String()
	assert.False(t, ansiPattern.MatchString(combined),
		"plain output contains ANSI escapes: %q", combined)
}

func TestHeaderMarkdown(t *testing.T) {
	r, out, _ := newBufRenderer(ModeMarkdown, false)
	r.Header(2, "Relations")
	assert.Contains(t, out.String(), "## Relations")
}

func TestJSONOutput(t *testing.T) {
	r, out, _ := newBufRenderer(ModeJSON, false)
	require.NoError(t, r.JSON(map[string]int{"relations": 3}))

	var decoded map[string]int
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, 3, decoded["relations"])
}

func TestStatusLineGlyphs(t *testing.T) {
	r, out, _ := newBufRenderer(ModeMarkdown, false)
	r.StatusLine("warehouse", "success", "")
	r.StatusLine("manifest", "failed", "not found")
	r.StatusLine("llm", "warning", "")
	r.StatusLine("state", "skipped", "")

	got := out.String()
	assert.Contains(t, got, "✓ warehouse")
	assert.Contains(t, got, "✗ manifest")
	assert.Contains(t, got, "not found")
	assert.Contains(t, got, "! llm")
	assert.Contains(t, got, "- state")
}

func TestWarningGoesToErrWriter(t *testing.T) {
	r, out, errOut := newBufRenderer(ModeMarkdown, false)
	r.Warning("watch out")
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "watch out")
}

func TestFormatHeader(t *testing.T) {
	assert.Equal(t, "# Title", FormatHeader(1, "Title"))
	assert.Equal(t, "### Deep", FormatHeader(3, "Deep"))
	assert.Equal(t, "# Clamped", FormatHeader(0, "Clamped"))
	assert.Equal(t, "###### Floor", FormatHeader(9, "Floor"))
}

func TestFormatKeyValue(t *testing.T) {
	assert.Equal(t, "**Status:** success", FormatKeyValue("Status", "success"))
}

func TestFormatCodeBlock(t *testing.T) {
	block := FormatCodeBlock("sql", "SELECT 1;")
	assert.True(t, strings.HasPrefix(block, "```sql\n"))
	assert.True(t, strings.HasSuffix(block, "\n```"))
	assert.Equal(t, 2, strings.Count(block, "```"))

	// Trailing newline in the code must not double up.
	block = FormatCodeBlock("", "SELECT 2;\n")
	assert.NotContains(t, block, "\n\n```")
}
