// Package expander answers warehouse questions by iteratively widening
// the set of relations offered to the model.
//
// The walk starts at the deepest lineage band, the most downstream and
// most aggregated relations, and asks a judge whether the current
// candidates suffice to answer the question. Each insufficient verdict
// lowers the depth cutoff by one band, so the approved set only ever
// grows. Once the judge is satisfied, a generator writes SQL restricted
// to the approved relations and the statement runs against the
// warehouse. Running out of iterations is a normal outcome, reported as
// an exhausted run rather than an error.
package expander

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/leapstack-labs/compass/internal/agent"
	"github.com/leapstack-labs/compass/internal/lineage"
	"github.com/leapstack-labs/compass/pkg/core"
)

// Reasoner runs one prompt to completion. Both the judge and the
// generator satisfy this through the agent loop.
type Reasoner interface {
	Run(ctx context.Context, prompt string) (*agent.Result, error)
}

// Executor runs SQL against the warehouse.
type Executor interface {
	Query(ctx context.Context, sqlText string) (*core.ResultSet, error)
}

// Run statuses.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusExhausted Status = "exhausted"
	StatusFailed    Status = "failed"
)

// Iteration is one entry of the process log, shared with the run
// history store.
type Iteration = core.IterationRecord

// Outcome is the result of one expansion run. Synthesis and execution
// failures are outcomes, not errors: the envelope keeps the exact SQL
// and raw model text that failed so a run can be diagnosed without
// repeating it.
type Outcome struct {
	Status         Status          `json:"status"`
	Question       string          `json:"question"`
	Approved       []string        `json:"approved_relations"`
	SQL            string          `json:"sql,omitempty"`
	RawModelOutput string          `json:"raw_model_output,omitempty"`
	Result         *core.ResultSet `json:"result,omitempty"`
	Error          string          `json:"error,omitempty"`
	Iterations     []Iteration     `json:"process_log"`
}

// Config wires an expander together.
type Config struct {
	Judge     Reasoner
	Generator Reasoner
	Executor  Executor
	Graph     *lineage.Graph

	// Depths may be precomputed; when nil they are derived from Graph.
	Depths *lineage.DepthResult

	// Annotations carries known column descriptions keyed by relation
	// qualified name, shown to the judge alongside each candidate.
	Annotations map[string][]core.ColumnDescriptor

	// MaxIterations bounds the widening loop. Defaults to 5.
	MaxIterations int

	Logger *slog.Logger
}

const defaultMaxIterations = 5

// Expander runs scope expansions against one lineage graph.
type Expander struct {
	cfg    Config
	logger *slog.Logger
}

// New validates the config and builds an expander.
func New(cfg Config) (*Expander, error) {
	if cfg.Judge == nil || cfg.Generator == nil {
		return nil, fmt.Errorf("expander requires judge and generator reasoners")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("expander requires a sql executor")
	}
	if cfg.Graph == nil {
		return nil, fmt.Errorf("expander requires a lineage graph")
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Expander{cfg: cfg, logger: cfg.Logger}, nil
}

// Run widens the candidate scope until the judge approves or the
// iteration budget runs out, then synthesizes and executes SQL.
func (e *Expander) Run(ctx context.Context, question string) (*Outcome, error) {
	depths := e.cfg.Depths
	if depths == nil {
		depths = e.cfg.Graph.Depths()
	}

	outcome := &Outcome{Question: question}
	approved := make(map[string]bool)
	cutoff := depths.MaxDepth()

	for iter := 0; iter < e.cfg.MaxIterations; iter++ {
		for _, id := range depths.AtLeast(cutoff) {
			approved[id] = true
		}

		judged, err := e.cfg.Judge.Run(ctx, e.verdictPrompt(question, approved))
		if err != nil {
			return nil, fmt.Errorf("scope verdict failed: %w", err)
		}
		verdict, reasoning := ParseVerdict(judged.FinalText)

		outcome.Iterations = append(outcome.Iterations, Iteration{
			Depth:          cutoff,
			CandidateCount: len(approved),
			Verdict:        string(verdict),
			Reasoning:      reasoning,
		})
		e.logger.Info("scope judged",
			"depth", cutoff,
			"candidates", len(approved),
			"verdict", verdict)

		if verdict == VerdictSufficient {
			return e.synthesize(ctx, question, approved, outcome)
		}
		if cutoff == 0 {
			// The whole graph is on the table and it still is not
			// enough; more iterations cannot add anything.
			break
		}
		cutoff--
	}

	outcome.Status = StatusExhausted
	outcome.Approved = e.qualifiedNames(approved)
	e.logger.Warn("scope expansion exhausted",
		"iterations", len(outcome.Iterations),
		"candidates", len(approved))
	return outcome, nil
}

// synthesize asks the generator for SQL over the approved scope and
// runs it. Only a model transport failure raises; unusable or failing
// SQL becomes a failed outcome.
func (e *Expander) synthesize(ctx context.Context, question string, approved map[string]bool, outcome *Outcome) (*Outcome, error) {
	names := e.qualifiedNames(approved)
	outcome.Approved = names

	generated, err := e.cfg.Generator.Run(ctx, sqlPrompt(question, names))
	if err != nil {
		return nil, fmt.Errorf("sql synthesis failed: %w", err)
	}
	outcome.RawModelOutput = generated.FinalText

	sqlText, err := ExtractSQL(generated.FinalText)
	if err != nil {
		return e.fail(outcome, fmt.Sprintf("sql synthesis failed: %v", err)), nil
	}
	outcome.SQL = sqlText

	nameSet := make(map[string]bool, len(names))
	for _, n := range names {
		nameSet[n] = true
	}
	if offenders := UnapprovedReferences(sqlText, nameSet, e.allQualifiedNames()); len(offenders) > 0 {
		return e.fail(outcome, fmt.Sprintf("synthesized sql references unapproved relations: %s", strings.Join(offenders, ", "))), nil
	}

	result, err := e.cfg.Executor.Query(ctx, sqlText)
	if err != nil {
		return e.fail(outcome, fmt.Sprintf("failed to execute synthesized sql: %v", err)), nil
	}

	outcome.Status = StatusSuccess
	outcome.Result = result
	e.logger.Info("question answered",
		"relations", len(names),
		"rows", result.RowCount())
	return outcome, nil
}

// fail marks the outcome failed, keeping any SQL and raw model text
// already captured on it.
func (e *Expander) fail(outcome *Outcome, msg string) *Outcome {
	outcome.Status = StatusFailed
	outcome.Error = msg
	e.logger.Error("synthesis failed", "error", msg)
	return outcome
}

// qualifiedNames maps approved relation ids to sorted qualified names.
func (e *Expander) qualifiedNames(approved map[string]bool) []string {
	names := make([]string, 0, len(approved))
	for id := range approved {
		if r, ok := e.cfg.Graph.Relation(id); ok {
			names = append(names, r.QualifiedName())
		}
	}
	sort.Strings(names)
	return names
}

func (e *Expander) allQualifiedNames() []string {
	relations := e.cfg.Graph.Relations()
	names := make([]string, 0, len(relations))
	for _, r := range relations {
		names = append(names, r.QualifiedName())
	}
	return names
}

func (e *Expander) verdictPrompt(question string, approved map[string]bool) string {
	ids := make([]string, 0, len(approved))
	for id := range approved {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", question)
	fmt.Fprintf(&b, "Candidate relations (%d):\n", len(ids))
	for _, id := range ids {
		r, ok := e.cfg.Graph.Relation(id)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- %s (%s, %s)", r.QualifiedName(), r.Kind, r.Materialization)
		if parents := e.cfg.Graph.Parents(id); len(parents) > 0 {
			fmt.Fprintf(&b, ", reads from %d upstream", len(parents))
		}
		b.WriteString("\n")
		for _, col := range e.cfg.Annotations[r.QualifiedName()] {
			fmt.Fprintf(&b, "    %s: %s\n", col.QualifiedName, col.Description)
		}
	}
	b.WriteString("\nCan the question be answered using only these relations?\n")
	b.WriteString(`Reply with JSON only: {"verdict": "sufficient" | "insufficient", "reasoning": "<one sentence>"}`)
	return b.String()
}

func sqlPrompt(question string, approved []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", question)
	b.WriteString("Write one SQL SELECT statement that answers the question.\n")
	b.WriteString("You may reference only these relations:\n")
	for _, name := range approved {
		fmt.Fprintf(&b, "- %s\n", name)
	}
	b.WriteString("\nReply with the SQL inside a ```sql fence and nothing else.")
	return b.String()
}
