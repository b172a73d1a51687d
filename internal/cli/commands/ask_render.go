package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/compass/internal/cli/output"
	"github.com/leapstack-labs/compass/internal/expander"
	"github.com/leapstack-labs/compass/pkg/core"
)

// renderOutcome writes one expansion outcome in the renderer's mode.
func renderOutcome(r *output.Renderer, outcome *expander.Outcome) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(outcome)
	case output.ModeMarkdown:
		return renderOutcomeMarkdown(r.Writer(), outcome)
	default:
		return renderOutcomeText(r, outcome)
	}
}

func renderOutcomeText(r *output.Renderer, outcome *expander.Outcome) error {
	for _, it := range outcome.Iterations {
		r.Muted(fmt.Sprintf("cutoff %d (%d relations): %s", it.Depth, it.CandidateCount, it.Verdict))
		if it.Reasoning != "" {
			r.Muted("  " + it.Reasoning)
		}
	}
	if len(outcome.Iterations) > 0 {
		r.Println()
	}

	if outcome.Status == expander.StatusExhausted {
		r.Warning(fmt.Sprintf("scope exhausted after %d iterations with %d candidate relations",
			len(outcome.Iterations), len(outcome.Approved)))
		return nil
	}

	if outcome.Status == expander.StatusFailed {
		r.Error(outcome.Error)
		if outcome.SQL != "" {
			r.Println()
			r.Header(2, "SQL")
			r.Println(strings.TrimSpace(outcome.SQL))
		} else if outcome.RawModelOutput != "" {
			r.Println()
			r.Header(2, "Model Output")
			r.Println(strings.TrimSpace(outcome.RawModelOutput))
		}
		return nil
	}

	r.Success(fmt.Sprintf("answered with %d relations after %d iterations",
		len(outcome.Approved), len(outcome.Iterations)))
	r.Println()

	if outcome.SQL != "" {
		r.Header(2, "SQL")
		r.Println(strings.TrimSpace(outcome.SQL))
		r.Println()
	}

	if outcome.Result != nil {
		renderResultTable(r.Writer(), outcome.Result)
	}
	return nil
}

func renderOutcomeMarkdown(w io.Writer, outcome *expander.Outcome) error {
	fmt.Fprintln(w, output.FormatHeader(1, "Answer"))
	fmt.Fprintln(w)
	fmt.Fprintln(w, output.FormatKeyValue("Question", outcome.Question))
	fmt.Fprintln(w, output.FormatKeyValue("Status", string(outcome.Status)))
	fmt.Fprintln(w, output.FormatKeyValue("Iterations", fmt.Sprintf("%d", len(outcome.Iterations))))
	fmt.Fprintln(w, output.FormatKeyValue("Approved relations", fmt.Sprintf("%d", len(outcome.Approved))))
	if outcome.Error != "" {
		fmt.Fprintln(w, output.FormatKeyValue("Error", outcome.Error))
	}
	fmt.Fprintln(w)

	if len(outcome.Iterations) > 0 {
		fmt.Fprintln(w, output.FormatHeader(2, "Process Log"))
		fmt.Fprintln(w)
		for _, it := range outcome.Iterations {
			fmt.Fprintf(w, "- cutoff %d (%d relations): %s", it.Depth, it.CandidateCount, it.Verdict)
			if it.Reasoning != "" {
				fmt.Fprintf(w, " - %s", it.Reasoning)
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
	}

	if len(outcome.Approved) > 0 {
		fmt.Fprintln(w, output.FormatHeader(2, "Approved Relations"))
		fmt.Fprintln(w)
		for _, name := range outcome.Approved {
			fmt.Fprintf(w, "- `%s`\n", name)
		}
		fmt.Fprintln(w)
	}

	if outcome.SQL != "" {
		fmt.Fprintln(w, output.FormatHeader(2, "SQL"))
		fmt.Fprintln(w)
		fmt.Fprint(w, output.FormatCodeBlock("sql", strings.TrimSpace(outcome.SQL)))
		fmt.Fprintln(w)
	} else if outcome.RawModelOutput != "" {
		fmt.Fprintln(w, output.FormatHeader(2, "Model Output"))
		fmt.Fprintln(w)
		fmt.Fprint(w, output.FormatCodeBlock("", strings.TrimSpace(outcome.RawModelOutput)))
		fmt.Fprintln(w)
	}

	if outcome.Result != nil {
		fmt.Fprintln(w, output.FormatHeader(2, "Result"))
		fmt.Fprintln(w)
		renderResultMarkdown(w, outcome.Result)
	}
	return nil
}

func renderResultTable(w io.Writer, rs *core.ResultSet) {
	if rs.RowCount() == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	headerRow := make(table.Row, len(rs.Columns))
	for i, col := range rs.Columns {
		headerRow[i] = col
	}
	t.AppendHeader(headerRow)

	for _, values := range rs.Rows {
		row := make(table.Row, len(rs.Columns))
		for i := range rs.Columns {
			row[i] = formatValue(values[i])
		}
		t.AppendRow(row)
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", rs.RowCount())
}

func renderResultMarkdown(w io.Writer, rs *core.ResultSet) {
	if rs.RowCount() == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return
	}

	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(rs.Columns, " | "))
	seps := make([]string, len(rs.Columns))
	for i := range seps {
		seps[i] = "---"
	}
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))

	for _, values := range rs.Rows {
		cells := make([]string, len(rs.Columns))
		for i := range rs.Columns {
			cells[i] = formatValue(values[i])
		}
		_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
	}
	_, _ = fmt.Fprintf(w, "\n(%d rows)\n", rs.RowCount())
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprintf("%v", v)
}
