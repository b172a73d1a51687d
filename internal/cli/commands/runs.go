package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/compass/internal/cli/output"
	"github.com/leapstack-labs/compass/pkg/core"
	"github.com/spf13/cobra"
)

// RunsOptions holds options for the runs command.
type RunsOptions struct {
	Limit int
}

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	opts := &RunsOptions{}
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Show recorded expansion runs",
		Long: `List the questions answered so far, newest first, with their status
and approved relation counts. Pass a run id to see one run in full,
including its widening iterations and the SQL that was executed.`,
		Example: `  # List recent runs
  compass runs

  # Show the last 50 runs
  compass runs --limit 50

  # Inspect one run
  compass runs 6f1c9be2-4a39-4d3e-9a41-2c8b7f1e0d5a

  # Machine-readable history
  compass runs -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return showRun(cmd, args[0])
			}
			return listRunsCmd(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "Maximum number of runs to list")

	return cmd
}

func listRunsCmd(cmd *cobra.Command, opts *RunsOptions) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	store, cleanup, err := openStateStore(cmdCtx.Cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	runs, err := store.ListRuns(opts.Limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		infos := make([]output.RunInfo, 0, len(runs))
		for _, run := range runs {
			infos = append(infos, output.NewRunInfo(run, nil))
		}
		return r.JSON(struct {
			Runs  []output.RunInfo `json:"runs"`
			Count int              `json:"count"`
		}{Runs: infos, Count: len(infos)})
	case output.ModeMarkdown:
		return runsMarkdown(r, runs)
	default:
		return runsText(r, runs)
	}
}

func runsText(r *output.Renderer, runs []*core.Run) error {
	r.Header(1, fmt.Sprintf("Runs (%d)", len(runs)))

	if len(runs) == 0 {
		r.Muted("No runs recorded yet; ask a question first")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.Writer())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Started", "Status", "Relations", "Question", "ID"})
	for _, run := range runs {
		t.AppendRow(table.Row{
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			run.Status,
			len(run.ApprovedRelations),
			truncateOneLine(run.Question, 60),
			run.ID,
		})
	}
	t.Render()
	return nil
}

func runsMarkdown(r *output.Renderer, runs []*core.Run) error {
	r.Println(output.FormatHeader(1, fmt.Sprintf("Runs (%d)", len(runs))))
	r.Println("")

	if len(runs) == 0 {
		r.Println("No runs recorded yet.")
		return nil
	}

	r.Println("| Started | Status | Relations | Question | ID |")
	r.Println("| --- | --- | --- | --- | --- |")
	for _, run := range runs {
		r.Printf("| %s | %s | %d | %s | `%s` |\n",
			run.StartedAt.Format(time.RFC3339),
			run.Status,
			len(run.ApprovedRelations),
			truncateOneLine(run.Question, 60),
			run.ID,
		)
	}
	r.Println("")
	return nil
}

func showRun(cmd *cobra.Command, runID string) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	store, cleanup, err := openStateStore(cmdCtx.Cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	run, err := store.GetRun(runID)
	if err != nil {
		return fmt.Errorf("run %s not found: %w", runID, err)
	}
	iterations, err := store.GetIterations(runID)
	if err != nil {
		return fmt.Errorf("failed to load iterations for run %s: %w", runID, err)
	}

	info := output.NewRunInfo(run, iterations)

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(info)
	case output.ModeMarkdown:
		return runMarkdown(r, run, iterations)
	default:
		return runText(r, run, iterations)
	}
}

func runText(r *output.Renderer, run *core.Run, iterations []core.IterationRecord) error {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header1.Render(run.Question))
	r.Println("")
	r.Printf("  %s: %s\n", styles.Bold.Render("ID"), run.ID)
	r.Printf("  %s: %s\n", styles.Bold.Render("Status"), string(run.Status))
	r.Printf("  %s: %s\n", styles.Bold.Render("Started"), run.StartedAt.Local().Format(time.RFC1123))
	if run.CompletedAt != nil {
		r.Printf("  %s: %s\n", styles.Bold.Render("Duration"), run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	r.Println("")

	if len(iterations) > 0 {
		r.Println(styles.Bold.Render("Process log"))
		for _, it := range iterations {
			r.Muted(fmt.Sprintf("  cutoff %d (%d relations): %s", it.Depth, it.CandidateCount, it.Verdict))
			if it.Reasoning != "" {
				r.Muted("    " + it.Reasoning)
			}
		}
		r.Println("")
	}

	if len(run.ApprovedRelations) > 0 {
		r.Println(styles.Bold.Render("Approved relations"))
		for _, name := range run.ApprovedRelations {
			r.Println("  " + name)
		}
		r.Println("")
	}

	if run.SQL != "" {
		r.Println(styles.Bold.Render("SQL"))
		r.Println(run.SQL)
		r.Println("")
	}

	if run.Error != "" {
		r.Error(run.Error)
	}
	return nil
}

func runMarkdown(r *output.Renderer, run *core.Run, iterations []core.IterationRecord) error {
	r.Println(output.FormatHeader(1, run.Question))
	r.Println("")
	r.Println(output.FormatKeyValue("ID", run.ID))
	r.Println(output.FormatKeyValue("Status", string(run.Status)))
	r.Println(output.FormatKeyValue("Started", run.StartedAt.Format(time.RFC3339)))
	if run.CompletedAt != nil {
		r.Println(output.FormatKeyValue("Completed", run.CompletedAt.Format(time.RFC3339)))
	}
	r.Println("")

	if len(iterations) > 0 {
		r.Println(output.FormatHeader(2, "Process Log"))
		r.Println("")
		for _, it := range iterations {
			r.Printf("- cutoff %d (%d relations): %s", it.Depth, it.CandidateCount, it.Verdict)
			if it.Reasoning != "" {
				r.Printf(" - %s", it.Reasoning)
			}
			r.Println("")
		}
		r.Println("")
	}

	if len(run.ApprovedRelations) > 0 {
		r.Println(output.FormatHeader(2, "Approved Relations"))
		r.Println("")
		for _, name := range run.ApprovedRelations {
			r.Println("- `" + name + "`")
		}
		r.Println("")
	}

	if run.SQL != "" {
		r.Println(output.FormatHeader(2, "SQL"))
		r.Println("")
		r.Printf("%s", output.FormatCodeBlock("sql", run.SQL))
		r.Println("")
	}

	if run.Error != "" {
		r.Println(output.FormatKeyValue("Error", run.Error))
		r.Println("")
	}
	return nil
}

func truncateOneLine(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
