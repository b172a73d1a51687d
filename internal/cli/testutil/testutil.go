// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/compass/internal/cli/output"
)

// ManifestJSON is a small dbt manifest fixture: two sources, two staging
// views, an ephemeral intermediate, and one mart table. The ephemeral
// node collapses away, so fct_revenue reads straight from both staging
// models.
const ManifestJSON = `{
  "nodes": {
    "model.shop.stg_orders": {
      "resource_type": "model",
      "name": "stg_orders",
      "schema": "staging",
      "depends_on": {"nodes": ["source.shop.raw.orders"]},
      "config": {"materialized": "view"}
    },
    "model.shop.stg_customers": {
      "resource_type": "model",
      "name": "stg_customers",
      "schema": "staging",
      "depends_on": {"nodes": ["source.shop.raw.customers"]},
      "config": {"materialized": "view"}
    },
    "model.shop.int_order_totals": {
      "resource_type": "model",
      "name": "int_order_totals",
      "schema": "staging",
      "depends_on": {"nodes": ["model.shop.stg_orders"]},
      "config": {"materialized": "ephemeral"}
    },
    "model.shop.fct_revenue": {
      "resource_type": "model",
      "name": "fct_revenue",
      "schema": "marts",
      "depends_on": {"nodes": ["model.shop.int_order_totals", "model.shop.stg_customers"]},
      "config": {"materialized": "table"}
    }
  },
  "sources": {
    "source.shop.raw.orders": {"name": "orders", "schema": "raw"},
    "source.shop.raw.customers": {"name": "customers", "schema": "raw"}
  }
}`

// WriteManifest writes the fixture manifest into dir and returns its path.
func WriteManifest(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(path, []byte(ManifestJSON), 0644); err != nil {
		t.Fatalf("failed to write manifest fixture: %v", err)
	}
	return path
}

// SetupTestProject creates a temporary compass project: a compass.yaml
// pointing at the fixture manifest, with an in-memory warehouse and
// state database so tests touch nothing outside the temp dir.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()

	targetDir := filepath.Join(tmpDir, "target")
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		t.Fatalf("failed to create target directory: %v", err)
	}
	WriteManifest(t, targetDir)

	configYAML := `manifest_path: target/manifest.json
state_path: ":memory:"
target:
  type: duckdb
  path: ":memory:"
`
	if err := os.WriteFile(filepath.Join(tmpDir, "compass.yaml"), []byte(configYAML), 0644); err != nil {
		t.Fatalf("failed to write compass.yaml: %v", err)
	}

	return tmpDir
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.OutputMode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// NewTestRendererAuto creates a new test renderer with auto mode detection.
// In tests, non-TTY defaults to markdown output.
func NewTestRendererAuto() *TestRenderer {
	return NewTestRenderer(output.ModeAuto, false)
}

// NewTestRendererText creates a new test renderer in text mode (simulated TTY).
func NewTestRendererText() *TestRenderer {
	return NewTestRenderer(output.ModeText, true)
}

// NewTestRendererMarkdown creates a new test renderer in markdown mode.
func NewTestRendererMarkdown() *TestRenderer {
	return NewTestRenderer(output.ModeMarkdown, false)
}

// NewTestRendererJSON creates a new test renderer in JSON mode.
func NewTestRendererJSON() *TestRenderer {
	return NewTestRenderer(output.ModeJSON, false)
}

// Output returns the combined stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// Reset clears both output buffers.
func (tr *TestRenderer) Reset() {
	tr.Out.Reset()
	tr.ErrOut.Reset()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertContains checks that the string contains the expected substring.
func AssertContains(t *testing.T, s, expected string) {
	t.Helper()
	if !strings.Contains(s, expected) {
		t.Errorf("string %q does not contain expected %q", s, expected)
	}
}

// AssertNotContains checks that the string does not contain the substring.
func AssertNotContains(t *testing.T, s, unexpected string) {
	t.Helper()
	if strings.Contains(s, unexpected) {
		t.Errorf("string %q unexpectedly contains %q", s, unexpected)
	}
}

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and basic structure.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	// Check for balanced code fences
	fenceCount := strings.Count(md, "```")
	if fenceCount%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", fenceCount)
	}

	// Check that headers have content
	lines := strings.Split(md, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}

// AssertOutputMode checks that the renderer output matches expected mode characteristics.
func AssertOutputMode(t *testing.T, tr *TestRenderer, expectedMode output.OutputMode) {
	t.Helper()

	combinedOutput := tr.Output() + tr.ErrorOutput()

	switch expectedMode {
	case output.ModeMarkdown:
		AssertNoANSI(t, combinedOutput)
	case output.ModeText:
		// Text mode may contain ANSI codes if TTY
	case output.ModeJSON:
		AssertNoANSI(t, combinedOutput)
	}
}
