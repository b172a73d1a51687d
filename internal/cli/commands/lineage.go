package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/compass/internal/cli/output"
	"github.com/leapstack-labs/compass/internal/lineage"
	"github.com/spf13/cobra"
)

// LineageOptions holds options for the lineage command.
type LineageOptions struct {
	Interactive bool
}

// NewLineageCommand creates the lineage command.
func NewLineageCommand() *cobra.Command {
	opts := &LineageOptions{}
	cmd := &cobra.Command{
		Use:   "lineage [relation]",
		Short: "Inspect the physical dependency graph",
		Long: `Show the physical relations parsed from the manifest, grouped into
depth bands. Depth 0 relations have no upstream dependencies; deeper
relations aggregate more. Ephemeral models never appear here: their
consumers inherit their dependencies instead.

Pass a relation id or qualified name to see one relation in detail.

Output adapts to environment:
  - Terminal: Styled table
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  # Show the full graph as a depth table
  compass lineage

  # Inspect a single relation
  compass lineage analytics.orders

  # Browse the graph interactively
  compass lineage -i

  # Machine-readable graph
  compass lineage -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return showRelation(cmd, args[0])
			}
			if opts.Interactive {
				return runLineageBrowser(cmd)
			}
			return runLineage(cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Interactive, "interactive", "i", false, "Browse the graph in a TUI")

	return cmd
}

func runLineage(cmd *cobra.Command) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	if err := cmdCtx.Cfg.ValidateManifest(); err != nil {
		return err
	}
	graph, err := loadGraph(cmdCtx.Cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}
	depths := graph.Depths()

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(output.NewLineageOutput(graph, depths))
	case output.ModeMarkdown:
		return lineageMarkdown(r, graph, depths)
	default:
		return lineageText(r, graph, depths)
	}
}

// lineageText renders the graph as a depth table, deepest band first.
func lineageText(r *output.Renderer, graph *lineage.Graph, depths *lineage.DepthResult) error {
	r.Header(1, fmt.Sprintf("Lineage (%d relations, %d edges)", graph.RelationCount(), graph.EdgeCount()))

	t := table.NewWriter()
	t.SetOutputMirror(r.Writer())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Relation", "Kind", "Materialization", "Depth", "Upstream"})

	cycles := 0
	for _, id := range idsByDepthDesc(graph, depths) {
		rel, ok := graph.Relation(id)
		if !ok {
			continue
		}
		depth, _ := depths.Depth(id)
		depthCell := fmt.Sprintf("%d", depth)
		if depths.IsCyclic(id) {
			depthCell += " (cyclic)"
			cycles++
		}
		t.AppendRow(table.Row{rel.QualifiedName(), rel.Kind, rel.Materialization, depthCell, len(graph.Parents(id))})
	}
	t.Render()

	r.Muted(fmt.Sprintf("max depth %d", depths.MaxDepth()))
	if cycles > 0 {
		r.Warning(fmt.Sprintf("%d relations sit on a dependency cycle and were pinned to depth 0", cycles))
	}
	return nil
}

// lineageMarkdown renders the graph band by band.
func lineageMarkdown(r *output.Renderer, graph *lineage.Graph, depths *lineage.DepthResult) error {
	r.Println(output.FormatHeader(1, "Lineage"))
	r.Println("")
	r.Println(output.FormatKeyValue("Relations", fmt.Sprintf("%d", graph.RelationCount())))
	r.Println(output.FormatKeyValue("Edges", fmt.Sprintf("%d", graph.EdgeCount())))
	r.Println(output.FormatKeyValue("Max depth", fmt.Sprintf("%d", depths.MaxDepth())))
	if cycles := len(depths.Cyclic); cycles > 0 {
		r.Println(output.FormatKeyValue("Cyclic relations", fmt.Sprintf("%d", cycles)))
	}
	r.Println("")

	bands := depths.ByDepth()
	order := make([]int, 0, len(bands))
	for d := range bands {
		order = append(order, d)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(order)))

	for _, d := range order {
		r.Println(output.FormatHeader(2, fmt.Sprintf("Depth %d", d)))
		r.Println("")
		for _, id := range bands[d] {
			rel, ok := graph.Relation(id)
			if !ok {
				continue
			}
			line := fmt.Sprintf("- `%s` (%s, %s)", rel.QualifiedName(), rel.Kind, rel.Materialization)
			if parents := graph.Parents(id); len(parents) > 0 {
				line += fmt.Sprintf(", reads from %d upstream", len(parents))
			}
			if depths.IsCyclic(id) {
				line += ", cyclic"
			}
			r.Println(line)
		}
		r.Println("")
	}
	return nil
}

// relationDetail is the JSON shape for a single-relation lookup.
type relationDetail struct {
	output.LineageNode
	Materialization string   `json:"materialization"`
	FullyQualified  string   `json:"fully_qualified_name"`
	Children        []string `json:"children,omitempty"`
}

func showRelation(cmd *cobra.Command, ref string) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	if err := cmdCtx.Cfg.ValidateManifest(); err != nil {
		return err
	}
	graph, err := loadGraph(cmdCtx.Cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}
	depths := graph.Depths()

	id, err := resolveRelationRef(graph, ref)
	if err != nil {
		return err
	}
	rel, _ := graph.Relation(id)
	depth, _ := depths.Depth(id)

	detail := relationDetail{
		LineageNode: output.LineageNode{
			ID:      id,
			Name:    rel.QualifiedName(),
			Kind:    string(rel.Kind),
			Depth:   depth,
			Cyclic:  depths.IsCyclic(id),
			Parents: graph.Parents(id),
		},
		Materialization: rel.Materialization,
		FullyQualified:  rel.FullyQualifiedName(),
		Children:        graph.Children(id),
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(detail)
	case output.ModeMarkdown:
		return relationMarkdown(r, graph, detail)
	default:
		return relationText(r, graph, detail)
	}
}

func relationText(r *output.Renderer, graph *lineage.Graph, d relationDetail) error {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header1.Render(d.Name))
	r.Println("")
	r.Printf("  %s: %s\n", styles.Bold.Render("ID"), d.ID)
	r.Printf("  %s: %s\n", styles.Bold.Render("Kind"), d.Kind)
	r.Printf("  %s: %s\n", styles.Bold.Render("Materialization"), d.Materialization)
	r.Printf("  %s: %d\n", styles.Bold.Render("Depth"), d.Depth)
	if d.Cyclic {
		r.Printf("  %s: %s\n", styles.Bold.Render("Cycle"), styles.Warning.Render("member of a dependency cycle"))
	}
	r.Println("")

	if len(d.Parents) > 0 {
		r.Println(styles.Bold.Render("Reads from"))
		for _, name := range qualifiedNamesOf(graph, d.Parents) {
			r.Println("  " + name)
		}
		r.Println("")
	}
	if len(d.Children) > 0 {
		r.Println(styles.Bold.Render("Read by"))
		for _, name := range qualifiedNamesOf(graph, d.Children) {
			r.Println("  " + name)
		}
		r.Println("")
	}
	return nil
}

func relationMarkdown(r *output.Renderer, graph *lineage.Graph, d relationDetail) error {
	r.Println(output.FormatHeader(1, d.Name))
	r.Println("")
	r.Println(output.FormatKeyValue("ID", d.ID))
	r.Println(output.FormatKeyValue("Kind", d.Kind))
	r.Println(output.FormatKeyValue("Materialization", d.Materialization))
	r.Println(output.FormatKeyValue("Depth", fmt.Sprintf("%d", d.Depth)))
	if d.Cyclic {
		r.Println(output.FormatKeyValue("Cycle", "member of a dependency cycle"))
	}
	r.Println("")

	if len(d.Parents) > 0 {
		r.Println(output.FormatHeader(2, "Reads From"))
		r.Println("")
		for _, name := range qualifiedNamesOf(graph, d.Parents) {
			r.Println("- `" + name + "`")
		}
		r.Println("")
	}
	if len(d.Children) > 0 {
		r.Println(output.FormatHeader(2, "Read By"))
		r.Println("")
		for _, name := range qualifiedNamesOf(graph, d.Children) {
			r.Println("- `" + name + "`")
		}
		r.Println("")
	}
	return nil
}

// resolveRelationRef accepts a manifest id, a qualified name, or a bare
// identifier, as long as the reference is unambiguous.
func resolveRelationRef(graph *lineage.Graph, ref string) (string, error) {
	if _, ok := graph.Relation(ref); ok {
		return ref, nil
	}

	var matches []string
	for _, id := range graph.RelationIDs() {
		rel, ok := graph.Relation(id)
		if !ok {
			continue
		}
		if strings.EqualFold(rel.QualifiedName(), ref) || strings.EqualFold(rel.Identifier, ref) {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", fmt.Errorf("relation %q not found in the manifest", ref)
	default:
		return "", fmt.Errorf("relation %q is ambiguous; candidates: %s", ref, strings.Join(matches, ", "))
	}
}

// idsByDepthDesc orders relation ids deepest first, id order within a band.
func idsByDepthDesc(graph *lineage.Graph, depths *lineage.DepthResult) []string {
	ids := graph.RelationIDs()
	sort.SliceStable(ids, func(i, j int) bool {
		return depths.Depths[ids[i]] > depths.Depths[ids[j]]
	})
	return ids
}

func qualifiedNamesOf(graph *lineage.Graph, ids []string) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if rel, ok := graph.Relation(id); ok {
			names = append(names, rel.QualifiedName())
		}
	}
	sort.Strings(names)
	return names
}
