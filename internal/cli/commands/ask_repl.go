package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

func runAskREPL(cmd *cobra.Command, opts *AskOptions) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg

	session, err := newAskSession(cmd.Context(), cmdCtx, opts)
	if err != nil {
		return err
	}
	defer session.close()

	// History lives next to the state database so it stays project-local.
	historyFile := filepath.Join(filepath.Dir(cfg.StatePath), "ask_history")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "compass> ",
		HistoryFile:     historyFile,
		AutoComplete:    newAskCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Compass Ask REPL (%d relations, max depth %d)\n",
		session.graph.RelationCount(), session.depths.MaxDepth())
	_, _ = fmt.Fprintln(out, "Ask a question in plain language, .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(out)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ".") {
			if quit := handleAskDotCommand(cmd, session, line); quit {
				break
			}
			continue
		}

		askCtx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
		outcome, err := session.ask(askCtx, line)
		cancel()
		if err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			continue
		}
		if err := renderOutcome(cmdCtx.Renderer, outcome); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		_, _ = fmt.Fprintln(out)
	}

	return nil
}

func handleAskDotCommand(cmd *cobra.Command, session *askSession, line string) bool {
	out := cmd.OutOrStdout()
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printAskREPLHelp(out)

	case ".relations":
		printREPLRelations(out, session)

	case ".tools":
		if err := printREPLTools(cmd.Context(), out, session); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}

	case ".runs":
		if err := printREPLRuns(out, session); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}

	case ".clear":
		fmt.Print("\033[H\033[2J")

	default:
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

func printAskREPLHelp(w io.Writer) {
	help := `
Commands:
  .help        Show this help message
  .relations   List lineage relations grouped by depth
  .tools       List connected warehouse tools
  .runs        Show recent run history
  .clear       Clear the screen
  .quit/.exit  Exit the REPL

Tips:
  - Any other input is asked as a question against the warehouse
  - Use arrow keys to navigate history
`
	_, _ = fmt.Fprintln(w, help)
}

// printREPLRelations lists the graph band by band, deepest first, which
// mirrors the order the widening loop offers them in.
func printREPLRelations(w io.Writer, session *askSession) {
	bands := session.depths.ByDepth()
	depths := make([]int, 0, len(bands))
	for d := range bands {
		depths = append(depths, d)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(depths)))

	for _, d := range depths {
		_, _ = fmt.Fprintf(w, "depth %d:\n", d)
		for _, id := range bands[d] {
			r, ok := session.graph.Relation(id)
			if !ok {
				continue
			}
			marker := ""
			if session.depths.IsCyclic(id) {
				marker = " (cyclic)"
			}
			_, _ = fmt.Fprintf(w, "  %s [%s]%s\n", r.QualifiedName(), r.Kind, marker)
		}
	}
	_, _ = fmt.Fprintln(w)
}

func printREPLTools(ctx context.Context, w io.Writer, session *askSession) error {
	descriptors, err := session.source.List(ctx)
	if err != nil {
		return err
	}
	if len(descriptors) == 0 {
		_, _ = fmt.Fprintln(w, "No tool servers configured")
		return nil
	}
	for _, d := range descriptors {
		_, _ = fmt.Fprintf(w, "  %s  %s\n", d.Name, d.Description)
	}
	_, _ = fmt.Fprintln(w)
	return nil
}

func printREPLRuns(w io.Writer, session *askSession) error {
	if session.store == nil {
		_, _ = fmt.Fprintln(w, "Run history unavailable")
		return nil
	}
	runs, err := session.store.ListRuns(10)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(w, "No runs recorded yet")
		return nil
	}
	for _, run := range runs {
		_, _ = fmt.Fprintf(w, "  %s  %-9s  %s\n", run.StartedAt.Format("2006-01-02 15:04"), run.Status, run.Question)
	}
	_, _ = fmt.Fprintln(w)
	return nil
}

// newAskCompleter completes the dot-commands; questions are free text.
func newAskCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".relations"),
		readline.PcItem(".tools"),
		readline.PcItem(".runs"),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}
