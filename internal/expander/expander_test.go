package expander

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/compass/internal/agent"
	"github.com/leapstack-labs/compass/internal/lineage"
	"github.com/leapstack-labs/compass/internal/manifest"
	"github.com/leapstack-labs/compass/internal/testutil"
	"github.com/leapstack-labs/compass/pkg/core"
)

const (
	sufficientReply   = `{"verdict": "sufficient", "reasoning": "marts cover it"}`
	insufficientReply = `{"verdict": "insufficient", "reasoning": "need upstream detail"}`
	martQuery         = "```sql\nSELECT count(*) FROM analytics.orders_mart\n```"
)

type scriptedReasoner struct {
	replies []string
	prompts []string
	err     error
}

func (r *scriptedReasoner) Run(_ context.Context, prompt string) (*agent.Result, error) {
	r.prompts = append(r.prompts, prompt)
	if r.err != nil {
		return nil, r.err
	}
	if len(r.replies) == 0 {
		return nil, errors.New("script exhausted")
	}
	reply := r.replies[0]
	r.replies = r.replies[1:]
	return &agent.Result{FinalText: reply}, nil
}

type fakeExecutor struct {
	queries []string
	result  *core.ResultSet
	err     error
}

func (e *fakeExecutor) Query(_ context.Context, sqlText string) (*core.ResultSet, error) {
	e.queries = append(e.queries, sqlText)
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

// testGraph builds a three-band graph:
//
//	depth 0: raw.events
//	depth 1: staging.stg_orders
//	depth 2: analytics.orders_mart, analytics.customers_mart
func testGraph(t *testing.T) *lineage.Graph {
	t.Helper()
	m := &manifest.Manifest{
		Nodes: map[string]manifest.Node{
			"model.shop.stg_orders": {
				ResourceType: "model", Name: "stg_orders", Schema: "staging",
				DependsOn: manifest.DependsOn{Nodes: []string{"source.shop.raw.events"}},
			},
			"model.shop.orders_mart": {
				ResourceType: "model", Name: "orders_mart", Schema: "analytics",
				DependsOn: manifest.DependsOn{Nodes: []string{"model.shop.stg_orders"}},
			},
			"model.shop.customers_mart": {
				ResourceType: "model", Name: "customers_mart", Schema: "analytics",
				DependsOn: manifest.DependsOn{Nodes: []string{"model.shop.stg_orders"}},
			},
		},
		Sources: map[string]manifest.Source{
			"source.shop.raw.events": {Name: "events", Schema: "raw"},
		},
	}
	return lineage.Build(m, testutil.NewTestLogger(t))
}

func newTestExpander(t *testing.T, judge, generator Reasoner, exec Executor, maxIterations int) *Expander {
	t.Helper()
	e, err := New(Config{
		Judge:         judge,
		Generator:     generator,
		Executor:      exec,
		Graph:         testGraph(t),
		MaxIterations: maxIterations,
		Logger:        testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	return e
}

func TestRunSufficientAtMaxDepth(t *testing.T) {
	judge := &scriptedReasoner{replies: []string{sufficientReply}}
	generator := &scriptedReasoner{replies: []string{martQuery}}
	exec := &fakeExecutor{result: &core.ResultSet{Columns: []string{"count"}, Rows: [][]any{{int64(1042)}}}}

	outcome, err := newTestExpander(t, judge, generator, exec, 5).Run(context.Background(), "how many orders?")
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, outcome.Status)
	assert.Equal(t, "SELECT count(*) FROM analytics.orders_mart", outcome.SQL)
	require.NotNil(t, outcome.Result)
	assert.Equal(t, 1, outcome.Result.RowCount())

	// Only the deepest band was ever approved.
	assert.Equal(t, []string{"analytics.customers_mart", "analytics.orders_mart"}, outcome.Approved)

	require.Len(t, outcome.Iterations, 1)
	assert.Equal(t, 2, outcome.Iterations[0].Depth)
	assert.Equal(t, 2, outcome.Iterations[0].CandidateCount)
	assert.Equal(t, "sufficient", outcome.Iterations[0].Verdict)
	assert.Equal(t, "marts cover it", outcome.Iterations[0].Reasoning)

	require.Len(t, exec.queries, 1)
	assert.Equal(t, outcome.SQL, exec.queries[0])
}

func TestRunWidensOneBandPerIteration(t *testing.T) {
	judge := &scriptedReasoner{replies: []string{insufficientReply, sufficientReply}}
	generator := &scriptedReasoner{replies: []string{"```sql\nSELECT count(*) FROM staging.stg_orders\n```"}}
	exec := &fakeExecutor{result: &core.ResultSet{Columns: []string{"count"}}}

	outcome, err := newTestExpander(t, judge, generator, exec, 5).Run(context.Background(), "orders by stage?")
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, outcome.Status)

	// First judgment saw only the marts, second added the staging band.
	require.Len(t, judge.prompts, 2)
	assert.NotContains(t, judge.prompts[0], "staging.stg_orders")
	assert.Contains(t, judge.prompts[1], "staging.stg_orders")
	assert.NotContains(t, judge.prompts[1], "raw.events")

	require.Len(t, outcome.Iterations, 2)
	assert.Equal(t, 2, outcome.Iterations[0].Depth)
	assert.Equal(t, 1, outcome.Iterations[1].Depth)
	assert.Greater(t, outcome.Iterations[1].CandidateCount, outcome.Iterations[0].CandidateCount)

	assert.Equal(t,
		[]string{"analytics.customers_mart", "analytics.orders_mart", "staging.stg_orders"},
		outcome.Approved)
}

func TestRunExhaustedIsNormalOutcome(t *testing.T) {
	judge := &scriptedReasoner{replies: []string{insufficientReply, insufficientReply}}
	generator := &scriptedReasoner{}
	exec := &fakeExecutor{}

	outcome, err := newTestExpander(t, judge, generator, exec, 2).Run(context.Background(), "impossible question")
	require.NoError(t, err, "running out of iterations is not an error")

	assert.Equal(t, StatusExhausted, outcome.Status)
	assert.Empty(t, outcome.SQL)
	assert.Nil(t, outcome.Result)
	assert.Len(t, outcome.Iterations, 2)
	assert.Empty(t, generator.prompts, "no synthesis without approval")

	// Two iterations reached depth 1; the approved set reflects that.
	assert.Equal(t,
		[]string{"analytics.customers_mart", "analytics.orders_mart", "staging.stg_orders"},
		outcome.Approved)
}

func TestRunStopsOnceWholeGraphOffered(t *testing.T) {
	judge := &scriptedReasoner{replies: []string{
		insufficientReply, insufficientReply, insufficientReply,
	}}

	outcome, err := newTestExpander(t, judge, &scriptedReasoner{}, &fakeExecutor{}, 10).
		Run(context.Background(), "unanswerable")
	require.NoError(t, err)

	// Depth bands 2, 1, 0; after offering the full graph there is
	// nothing left to widen, regardless of the iteration budget.
	assert.Equal(t, StatusExhausted, outcome.Status)
	assert.Len(t, outcome.Iterations, 3)
	assert.Equal(t, 0, outcome.Iterations[2].Depth)
	assert.Len(t, outcome.Approved, 4)
}

func TestRunUnparseableVerdictWidens(t *testing.T) {
	judge := &scriptedReasoner{replies: []string{"hmm, hard to say", sufficientReply}}
	generator := &scriptedReasoner{replies: []string{martQuery}}
	exec := &fakeExecutor{result: &core.ResultSet{}}

	outcome, err := newTestExpander(t, judge, generator, exec, 5).Run(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, "insufficient", outcome.Iterations[0].Verdict)
	assert.Equal(t, "hmm, hard to say", outcome.Iterations[0].Reasoning)
	assert.Equal(t, "sufficient", outcome.Iterations[1].Verdict)
}

func TestRunEmptySQLIsFailure(t *testing.T) {
	judge := &scriptedReasoner{replies: []string{sufficientReply}}
	generator := &scriptedReasoner{replies: []string{"```sql\n\n```"}}

	outcome, err := newTestExpander(t, judge, generator, &fakeExecutor{}, 5).Run(context.Background(), "q")
	require.NoError(t, err, "unusable model output is an outcome, not an error")

	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Contains(t, outcome.Error, "sql synthesis failed")
	assert.Empty(t, outcome.SQL)
	assert.Equal(t, "```sql\n\n```", outcome.RawModelOutput)
	assert.Equal(t, []string{"analytics.customers_mart", "analytics.orders_mart"}, outcome.Approved)
}

func TestRunRejectsUnapprovedReference(t *testing.T) {
	judge := &scriptedReasoner{replies: []string{sufficientReply}}
	generator := &scriptedReasoner{replies: []string{"```sql\nSELECT * FROM raw.events\n```"}}
	exec := &fakeExecutor{}

	outcome, err := newTestExpander(t, judge, generator, exec, 5).Run(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Contains(t, outcome.Error, "unapproved")
	assert.Contains(t, outcome.Error, "raw.events")
	assert.Equal(t, "SELECT * FROM raw.events", outcome.SQL, "rejected sql stays visible")
	assert.Empty(t, exec.queries, "rejected sql must not run")
}

func TestRunJudgeFailureIsFatal(t *testing.T) {
	judge := &scriptedReasoner{err: errors.New("model unavailable")}

	_, err := newTestExpander(t, judge, &scriptedReasoner{}, &fakeExecutor{}, 5).
		Run(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scope verdict failed")
}

func TestRunGeneratorFailureIsFatal(t *testing.T) {
	judge := &scriptedReasoner{replies: []string{sufficientReply}}
	generator := &scriptedReasoner{err: errors.New("model unavailable")}

	_, err := newTestExpander(t, judge, generator, &fakeExecutor{}, 5).Run(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sql synthesis failed")
}

func TestRunExecutionFailureKeepsSQL(t *testing.T) {
	judge := &scriptedReasoner{replies: []string{sufficientReply}}
	generator := &scriptedReasoner{replies: []string{martQuery}}
	exec := &fakeExecutor{err: errors.New("relation does not exist")}

	outcome, err := newTestExpander(t, judge, generator, exec, 5).Run(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Contains(t, outcome.Error, "failed to execute synthesized sql")
	assert.Contains(t, outcome.Error, "relation does not exist")
	assert.Equal(t, "SELECT count(*) FROM analytics.orders_mart", outcome.SQL)
	assert.Nil(t, outcome.Result)
}

func TestRunAnnotationsShownToJudge(t *testing.T) {
	judge := &scriptedReasoner{replies: []string{sufficientReply}}
	generator := &scriptedReasoner{replies: []string{martQuery}}

	e, err := New(Config{
		Judge:     judge,
		Generator: generator,
		Executor:  &fakeExecutor{result: &core.ResultSet{}},
		Graph:     testGraph(t),
		Annotations: map[string][]core.ColumnDescriptor{
			"analytics.orders_mart": {
				{QualifiedName: "analytics.orders_mart.amount", Description: "order total in cents"},
			},
		},
		Logger: testutil.NewTestLogger(t),
	})
	require.NoError(t, err)

	_, err = e.Run(context.Background(), "q")
	require.NoError(t, err)

	require.Len(t, judge.prompts, 1)
	assert.Contains(t, judge.prompts[0], "order total in cents")
}

func TestRunGeneratorPromptListsOnlyApproved(t *testing.T) {
	judge := &scriptedReasoner{replies: []string{sufficientReply}}
	generator := &scriptedReasoner{replies: []string{martQuery}}

	_, err := newTestExpander(t, judge, generator, &fakeExecutor{result: &core.ResultSet{}}, 5).
		Run(context.Background(), "q")
	require.NoError(t, err)

	require.Len(t, generator.prompts, 1)
	prompt := generator.prompts[0]
	assert.Contains(t, prompt, "analytics.orders_mart")
	assert.False(t, strings.Contains(prompt, "raw.events"), "unapproved relations must not be offered")
}

func TestNewValidatesConfig(t *testing.T) {
	valid := Config{
		Judge:     &scriptedReasoner{},
		Generator: &scriptedReasoner{},
		Executor:  &fakeExecutor{},
		Graph:     testGraph(t),
	}

	for _, broken := range []func(Config) Config{
		func(c Config) Config { c.Judge = nil; return c },
		func(c Config) Config { c.Generator = nil; return c },
		func(c Config) Config { c.Executor = nil; return c },
		func(c Config) Config { c.Graph = nil; return c },
	} {
		_, err := New(broken(valid))
		assert.Error(t, err)
	}

	e, err := New(valid)
	require.NoError(t, err)
	assert.Equal(t, defaultMaxIterations, e.cfg.MaxIterations)
}
