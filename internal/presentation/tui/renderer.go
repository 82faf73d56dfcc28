package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/goflowspace/goflow/pkg/domain"
)

// NewRenderer returns a function that renders markdown using glamour.
// It falls back to the raw markdown when no terminal renderer is available.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
	)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// LayerMarkdown summarizes a layer as markdown: breadcrumb, nodes and edges.
func LayerMarkdown(l *domain.Layer, path []string) string {
	var sb strings.Builder
	name := l.Name
	if name == "" {
		name = l.ID
	}
	fmt.Fprintf(&sb, "# %s\n\n", name)
	if len(path) > 0 {
		fmt.Fprintf(&sb, "`%s`\n\n", strings.Join(path, " / "))
	}
	if l.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", l.Description)
	}

	sb.WriteString("## Nodes\n\n")
	nodes := l.OrderedNodes()
	if len(nodes) == 0 {
		sb.WriteString("_empty_\n\n")
	} else {
		sb.WriteString("| id | type | label | position |\n|---|---|---|---|\n")
		for _, n := range nodes {
			fmt.Fprintf(&sb, "| %s | %s | %s | %g, %g |\n", n.ID, n.Kind, cell(n.Label()), n.Coordinates.X, n.Coordinates.Y)
		}
		sb.WriteString("\n")
	}

	if len(l.Edges) > 0 {
		sb.WriteString("## Edges\n\n| id | from | to | conditions |\n|---|---|---|---|\n")
		for _, id := range l.EdgeIDs() {
			e := l.Edges[id]
			from, to := e.StartNodeID, e.EndNodeID
			if h := e.SourceHandle.ID(); h != "" {
				from += " (" + h + ")"
			}
			if h := e.TargetHandle.ID(); h != "" {
				to += " (" + h + ")"
			}
			fmt.Fprintf(&sb, "| %s | %s | %s | %d |\n", e.ID, from, to, len(e.Conditions))
		}
	}
	return sb.String()
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
