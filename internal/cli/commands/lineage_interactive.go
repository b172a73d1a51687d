package commands

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/leapstack-labs/compass/internal/lineage"
	"github.com/spf13/cobra"
)

// runLineageBrowser opens a TUI over the dependency graph: a filterable
// depth table with a detail pane for the selected relation.
func runLineageBrowser(cmd *cobra.Command) error {
	cmdCtx := NewCommandContext(cmd)

	if !cmdCtx.Renderer.IsTTY() {
		return fmt.Errorf("interactive lineage requires a terminal; use -o json or -o markdown instead")
	}

	if err := cmdCtx.Cfg.ValidateManifest(); err != nil {
		return err
	}
	graph, err := loadGraph(cmdCtx.Cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}

	model := newLineageBrowser(graph, graph.Depths())
	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

type browserEntry struct {
	id     string
	name   string
	kind   string
	mat    string
	depth  int
	cyclic bool
}

type lineageBrowser struct {
	graph  *lineage.Graph
	depths *lineage.DepthResult

	entries  []browserEntry // all relations, deepest first
	visible  []browserEntry // entries after filtering
	table    table.Model
	filter   textinput.Model
	filterOn bool
	detail   bool
	width    int
	height   int

	titleStyle lipgloss.Style
	hintStyle  lipgloss.Style
	paneStyle  lipgloss.Style
}

func newLineageBrowser(graph *lineage.Graph, depths *lineage.DepthResult) lineageBrowser {
	entries := make([]browserEntry, 0, graph.RelationCount())
	for _, id := range idsByDepthDesc(graph, depths) {
		rel, ok := graph.Relation(id)
		if !ok {
			continue
		}
		depth, _ := depths.Depth(id)
		entries = append(entries, browserEntry{
			id:     id,
			name:   rel.QualifiedName(),
			kind:   string(rel.Kind),
			mat:    rel.Materialization,
			depth:  depth,
			cyclic: depths.IsCyclic(id),
		})
	}

	t := table.New(
		table.WithColumns(browserColumns(96)),
		table.WithFocused(true),
		table.WithHeight(16),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	fi := textinput.New()
	fi.Placeholder = "Filter by name or kind..."
	fi.CharLimit = 60
	fi.Width = 40

	m := lineageBrowser{
		graph:      graph,
		depths:     depths,
		entries:    entries,
		table:      t,
		filter:     fi,
		titleStyle: lipgloss.NewStyle().Bold(true),
		hintStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		paneStyle:  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
	}
	m.applyFilter()
	return m
}

func browserColumns(width int) []table.Column {
	nameWidth := width - 44
	if nameWidth < 24 {
		nameWidth = 24
	}
	return []table.Column{
		{Title: "Relation", Width: nameWidth},
		{Title: "Kind", Width: 10},
		{Title: "Mat", Width: 12},
		{Title: "Depth", Width: 7},
		{Title: "Up", Width: 5},
	}
}

func (m lineageBrowser) Init() tea.Cmd {
	return nil
}

func (m lineageBrowser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetColumns(browserColumns(msg.Width - 4))
		h := msg.Height - 8
		if h < 5 {
			h = 5
		}
		m.table.SetHeight(h)
		return m, nil

	case tea.KeyMsg:
		if m.filterOn {
			switch msg.String() {
			case "enter", "esc":
				m.filterOn = false
				m.filter.Blur()
				return m, nil
			default:
				m.filter, cmd = m.filter.Update(msg)
				m.applyFilter()
				return m, cmd
			}
		}

		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "/":
			m.filterOn = true
			m.filter.Focus()
			return m, textinput.Blink
		case "esc":
			if m.detail {
				m.detail = false
				return m, nil
			}
			if m.filter.Value() != "" {
				m.filter.SetValue("")
				m.applyFilter()
				return m, nil
			}
			return m, tea.Quit
		case "enter":
			m.detail = !m.detail
			return m, nil
		}
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// applyFilter rebuilds the visible rows from the filter text.
func (m *lineageBrowser) applyFilter() {
	needle := strings.ToLower(strings.TrimSpace(m.filter.Value()))

	m.visible = m.visible[:0]
	rows := make([]table.Row, 0, len(m.entries))
	for _, e := range m.entries {
		if needle != "" &&
			!strings.Contains(strings.ToLower(e.name), needle) &&
			!strings.Contains(strings.ToLower(e.kind), needle) {
			continue
		}
		m.visible = append(m.visible, e)
		depthCell := fmt.Sprintf("%d", e.depth)
		if e.cyclic {
			depthCell += "*"
		}
		rows = append(rows, table.Row{
			e.name,
			e.kind,
			e.mat,
			depthCell,
			fmt.Sprintf("%d", len(m.graph.Parents(e.id))),
		})
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) {
		m.table.SetCursor(0)
	}
}

func (m lineageBrowser) selected() (browserEntry, bool) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.visible) {
		return browserEntry{}, false
	}
	return m.visible[idx], true
}

func (m lineageBrowser) View() string {
	var sb strings.Builder

	title := fmt.Sprintf(" Lineage - %d relations, max depth %d ",
		m.graph.RelationCount(), m.depths.MaxDepth())
	sb.WriteString(m.titleStyle.Render(title) + "\n\n")

	if m.filterOn || m.filter.Value() != "" {
		sb.WriteString(m.filter.View() + "\n\n")
	}

	sb.WriteString(m.table.View() + "\n")

	if len(m.visible) != len(m.entries) {
		sb.WriteString(m.hintStyle.Render(
			fmt.Sprintf("Showing %d of %d relations", len(m.visible), len(m.entries))) + "\n")
	}

	if m.detail {
		if e, ok := m.selected(); ok {
			sb.WriteString("\n" + m.paneStyle.Render(m.detailView(e)) + "\n")
		}
	}

	sb.WriteString("\n" + m.hintStyle.Render("[/] Filter  [Enter] Detail  [Esc] Back  [q] Quit"))
	return sb.String()
}

func (m lineageBrowser) detailView(e browserEntry) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s\n", m.titleStyle.Render(e.name))
	fmt.Fprintf(&sb, "id: %s\n", e.id)
	fmt.Fprintf(&sb, "kind: %s  materialization: %s  depth: %d\n", e.kind, e.mat, e.depth)
	if e.cyclic {
		sb.WriteString("member of a dependency cycle\n")
	}

	if parents := qualifiedNamesOf(m.graph, m.graph.Parents(e.id)); len(parents) > 0 {
		fmt.Fprintf(&sb, "reads from: %s\n", strings.Join(parents, ", "))
	}
	if children := qualifiedNamesOf(m.graph, m.graph.Children(e.id)); len(children) > 0 {
		fmt.Fprintf(&sb, "read by: %s\n", strings.Join(children, ", "))
	}
	return strings.TrimRight(sb.String(), "\n")
}
