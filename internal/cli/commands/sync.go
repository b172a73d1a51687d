package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/compass/internal/cli/output"
	"github.com/leapstack-labs/compass/internal/knowledge"
	"github.com/leapstack-labs/compass/internal/lineage"
	"github.com/leapstack-labs/compass/pkg/core"
	"github.com/spf13/cobra"
)

// SyncOptions holds options for the sync command.
type SyncOptions struct {
	Select   string
	Describe bool
	Workers  int
}

// NewSyncCommand creates the sync command.
func NewSyncCommand() *cobra.Command {
	opts := &SyncOptions{}
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Harvest column knowledge from the warehouse",
		Long: `Fetch column metadata for every manifest relation through the
warehouse adapter and reconcile it against the knowledge table. Columns
the table already knows are left untouched; only missing ones are
merged, so existing descriptions survive a resync.

With --describe, an LLM writes a one-line description for each column
before it is stored. Without it, columns are stored with their type
information only.`,
		Example: `  # Sync every relation in the manifest
  compass sync

  # Sync two relations and describe their columns
  compass sync --select analytics.orders,analytics.customers --describe

  # Raise the metadata fetch concurrency
  compass sync --workers 8`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Select, "select", "s", "", "Comma-separated relations to sync (default: all)")
	cmd.Flags().BoolVar(&opts.Describe, "describe", false, "Generate column descriptions with the LLM")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "Concurrent metadata fetches (default 4)")

	return cmd
}

func runSync(cmd *cobra.Command, opts *SyncOptions) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg
	logger := cmdCtx.Logger
	r := cmdCtx.Renderer
	ctx := cmd.Context()

	if err := cfg.ValidateManifest(); err != nil {
		return err
	}
	graph, err := loadGraph(cfg, logger)
	if err != nil {
		return err
	}

	relations := selectRelations(graph, opts.Select)
	if len(relations) == 0 {
		if opts.Select != "" {
			return fmt.Errorf("no relations match --select %q", opts.Select)
		}
		r.Muted("No relations in the manifest; nothing to sync")
		return nil
	}

	adp, cleanup, err := connectAdapter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	catalog, err := knowledge.NewCatalog(knowledge.CatalogConfig{
		Adapter: adp,
		Schema:  cfg.Knowledge.Schema,
		Table:   cfg.Knowledge.Table,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	var describer knowledge.Describer
	if opts.Describe {
		client, err := newModelClient(cfg, logger)
		if err != nil {
			return err
		}
		describer = knowledge.NewLLMDescriber(client, logger)
	}

	var spinner *output.Spinner
	if r.EffectiveMode() == output.ModeText {
		spinner = r.NewSpinner(fmt.Sprintf("Syncing %d relations...", len(relations)))
		spinner.Start()
	}

	result, err := knowledge.SyncRelations(ctx, adp, catalog, knowledge.SyncOptions{
		Relations: relations,
		Workers:   opts.Workers,
		Describer: describer,
	}, logger)
	if err != nil {
		if spinner != nil {
			spinner.Fail("Sync failed")
		}
		return err
	}

	if spinner != nil {
		spinner.Success("Sync complete")
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(newSyncOutput(result))
	case output.ModeMarkdown:
		return syncMarkdown(r, result)
	default:
		return syncText(r, result)
	}
}

// selectRelations filters the graph by a comma-separated relation list.
// References match the manifest id, the qualified name, or the bare
// identifier.
func selectRelations(graph *lineage.Graph, selector string) []*core.PhysicalRelation {
	all := graph.Relations()
	if strings.TrimSpace(selector) == "" {
		return all
	}

	wanted := strings.Split(selector, ",")
	var out []*core.PhysicalRelation
	for _, rel := range all {
		for _, w := range wanted {
			w = strings.TrimSpace(w)
			if w == "" {
				continue
			}
			if rel.ID == w || strings.EqualFold(rel.QualifiedName(), w) || strings.EqualFold(rel.Identifier, w) {
				out = append(out, rel)
				break
			}
		}
	}
	return out
}

func syncText(r *output.Renderer, result *knowledge.SyncResult) error {
	r.Println("")
	r.Println(result.Summary())

	if result.HasErrors() {
		r.Println("")
		for _, e := range result.Errors {
			r.StatusLine(e.Relation, "warning", e.Message)
		}
	}
	return nil
}

func syncMarkdown(r *output.Renderer, result *knowledge.SyncResult) error {
	r.Println(output.FormatHeader(1, "Knowledge Sync"))
	r.Println("")
	r.Println(output.FormatKeyValue("Relations scanned", fmt.Sprintf("%d", result.RelationsScanned)))
	r.Println(output.FormatKeyValue("Relations skipped", fmt.Sprintf("%d", result.RelationsSkipped)))
	r.Println(output.FormatKeyValue("Columns new", fmt.Sprintf("%d", result.ColumnsNew)))
	r.Println(output.FormatKeyValue("Columns already known", fmt.Sprintf("%d", result.ColumnsKnown)))
	r.Println(output.FormatKeyValue("Duration", result.Duration.String()))
	r.Println("")

	if result.HasErrors() {
		r.Println(output.FormatHeader(2, "Skipped Relations"))
		r.Println("")
		for _, e := range result.Errors {
			r.Printf("- `%s`: %s\n", e.Relation, e.Message)
		}
		r.Println("")
	}
	return nil
}

// syncOutput is the JSON shape for a sync run.
type syncOutput struct {
	RelationsScanned int             `json:"relations_scanned"`
	RelationsSkipped int             `json:"relations_skipped"`
	ColumnsNew       int             `json:"columns_new"`
	ColumnsKnown     int             `json:"columns_known"`
	DurationMS       int64           `json:"duration_ms"`
	Errors           []syncErrorInfo `json:"errors,omitempty"`
}

type syncErrorInfo struct {
	Relation string `json:"relation"`
	Message  string `json:"message"`
}

func newSyncOutput(result *knowledge.SyncResult) syncOutput {
	out := syncOutput{
		RelationsScanned: result.RelationsScanned,
		RelationsSkipped: result.RelationsSkipped,
		ColumnsNew:       result.ColumnsNew,
		ColumnsKnown:     result.ColumnsKnown,
		DurationMS:       result.Duration.Milliseconds(),
	}
	for _, e := range result.Errors {
		out.Errors = append(out.Errors, syncErrorInfo{Relation: e.Relation, Message: e.Message})
	}
	return out
}
