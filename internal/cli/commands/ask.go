package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/compass/internal/expander"
	"github.com/leapstack-labs/compass/internal/lineage"
	"github.com/leapstack-labs/compass/internal/tools"
	"github.com/leapstack-labs/compass/pkg/adapter"
	"github.com/leapstack-labs/compass/pkg/core"
	"github.com/spf13/cobra"
)

// judgeSystem steers the sufficiency judge. The final reply must be the
// JSON verdict envelope; anything else is treated as insufficient.
const judgeSystem = `You are a data warehouse analyst deciding whether a set of candidate
relations is sufficient to answer an analytical question. Prefer the most
aggregated relations that can answer the question. Inspect candidates
with the available tools when schema details matter. Always finish with a
JSON verdict of the exact form
{"verdict": "sufficient" | "insufficient", "reasoning": "<one sentence>"}.`

// generatorSystem steers SQL synthesis against the approved scope.
const generatorSystem = `You are a SQL generator for a data warehouse. Write a single SELECT
statement that answers the question using only the relations you are
given. Use the available tools to check column names when unsure. Reply
with the SQL inside a ` + "```sql" + ` fence and nothing else.`

// AskOptions holds options for the ask command.
type AskOptions struct {
	Interactive   bool
	MaxIterations int
	Timeout       time.Duration
}

// NewAskCommand creates the ask command.
func NewAskCommand() *cobra.Command {
	opts := &AskOptions{}
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer an analytical question against the warehouse",
		Long: `Answer a question by widening the visible slice of the lineage graph
until a model judge finds it sufficient, then generating and executing
SQL restricted to the approved relations.

The walk starts at the deepest lineage band (the most derived relations)
and descends one dependency band per iteration. Every run is recorded in
the run-history database; see "compass runs".`,
		Example: `  # One-shot question
  compass ask "How did weekly revenue develop over the last quarter?"

  # Interactive session with history
  compass ask --interactive

  # Machine-readable envelope
  compass ask -o json "Which customers churned last month?"`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Interactive {
				return runAskREPL(cmd, opts)
			}
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return fmt.Errorf("provide a question or use --interactive")
			}
			return runAsk(cmd, question, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Interactive, "interactive", "i", false, "Start an interactive session")
	cmd.Flags().IntVar(&opts.MaxIterations, "max-iterations", 0, "Override the widening iteration budget")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Minute, "Overall time budget per question")

	return cmd
}

func runAsk(cmd *cobra.Command, question string, opts *AskOptions) error {
	cmdCtx := NewCommandContext(cmd)

	session, err := newAskSession(cmd.Context(), cmdCtx, opts)
	if err != nil {
		return err
	}
	defer session.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	defer cancel()

	outcome, err := session.ask(ctx, question)
	if err != nil {
		return err
	}
	return renderOutcome(cmdCtx.Renderer, outcome)
}

// askSession bundles the long-lived pieces of an expansion run so the
// REPL can reuse one warehouse connection and tool session across
// questions.
type askSession struct {
	cmdCtx   *CommandContext
	graph    *lineage.Graph
	depths   *lineage.DepthResult
	exp      *expander.Expander
	source   tools.Source
	store    core.Store // nil when run history is unavailable
	cleanups []func()
}

func newAskSession(ctx context.Context, cmdCtx *CommandContext, opts *AskOptions) (*askSession, error) {
	cfg := cmdCtx.Cfg
	logger := cmdCtx.Logger

	if err := cfg.ValidateManifest(); err != nil {
		return nil, err
	}

	s := &askSession{cmdCtx: cmdCtx}
	ok := false
	defer func() {
		if !ok {
			s.close()
		}
	}()

	graph, err := loadGraph(cfg, logger)
	if err != nil {
		return nil, err
	}
	s.graph = graph
	s.depths = graph.Depths()

	adp, adpCleanup, err := connectAdapter(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	s.cleanups = append(s.cleanups, adpCleanup)

	client, err := newModelClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	source, toolCleanup, err := connectToolSource(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	s.source = source
	s.cleanups = append(s.cleanups, toolCleanup)

	judge, generator, err := newReasoners(cfg, logger, client, source)
	if err != nil {
		return nil, err
	}

	iterations := cfg.Expander.MaxIterations
	if opts.MaxIterations > 0 {
		iterations = opts.MaxIterations
	}

	exp, err := expander.New(expander.Config{
		Judge:         judge,
		Generator:     generator,
		Executor:      &warehouseExecutor{adp: adp},
		Graph:         graph,
		Depths:        s.depths,
		Annotations:   loadAnnotations(ctx, adp, graph, cfg, logger),
		MaxIterations: iterations,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	s.exp = exp

	// Run history is best-effort; a broken state database must not block
	// answering.
	store, storeCleanup, err := openStateStore(cfg)
	if err != nil {
		logger.Warn("run history disabled", "error", err)
	} else {
		s.store = store
		s.cleanups = append(s.cleanups, storeCleanup)
	}

	ok = true
	return s, nil
}

func (s *askSession) close() {
	for i := len(s.cleanups) - 1; i >= 0; i-- {
		s.cleanups[i]()
	}
	s.cleanups = nil
}

// ask runs one expansion and records it in the run history.
func (s *askSession) ask(ctx context.Context, question string) (*expander.Outcome, error) {
	var runID string
	if s.store != nil {
		run, err := s.store.CreateRun(question)
		if err != nil {
			s.cmdCtx.Logger.Warn("failed to create run record", "error", err)
		} else {
			runID = run.ID
		}
	}

	outcome, err := s.exp.Run(ctx, question)

	if runID != "" {
		expander.RecordOutcome(s.store, runID, outcome, err, s.cmdCtx.Logger)
	}
	return outcome, err
}

// warehouseExecutor adapts the warehouse connection to the expander's
// executor contract.
type warehouseExecutor struct {
	adp adapter.Adapter
}

func (w *warehouseExecutor) Query(ctx context.Context, sqlText string) (*core.ResultSet, error) {
	rows, err := w.adp.Query(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return core.CollectRows(rows.Rows)
}

