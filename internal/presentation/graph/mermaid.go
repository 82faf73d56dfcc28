package graph

import (
	"fmt"
	"strings"

	"github.com/goflowspace/goflow/pkg/domain"
	core "github.com/goflowspace/goflow/pkg/graph"
)

// maxLabel bounds the node text shown in a label.
const maxLabel = 32

// GraphOverlay contains editor state to visualize on the graph.
type GraphOverlay struct {
	Selected []string
	// Ports styles the starting and ending ports of the layer.
	Ports bool
}

// GenerateMermaid produces a Mermaid flowchart for one layer.
// It applies semantic styling:
// - Narrative: [Rectangle]
// - Choice: {{Hexagon}}
// - Note: >Flag]
// - Layer: [[Subroutine]] with its port counts
// Edges leaving or entering through a layer port are dotted and carry the
// port id; edges with conditions show the number of groups.
func GenerateMermaid(layer *domain.Layer, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	for _, node := range layer.OrderedNodes() {
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		switch node.Kind {
		case domain.KindChoice:
			opener, closer = "{{", "}}"
		case domain.KindNote:
			opener, closer = ">", "]"
		case domain.KindLayer:
			opener, closer = "[[", "]]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, label(node), closer)
	}

	for _, id := range layer.EdgeIDs() {
		e := layer.Edges[id]
		via := strings.TrimSpace(e.SourceHandle.ID() + " " + e.TargetHandle.ID())

		arrow := "-->"
		var text []string
		if via != "" {
			text = append(text, "via "+via)
		}
		if n := len(e.Conditions); n > 0 {
			text = append(text, fmt.Sprintf("%d cond", n))
		}
		switch {
		case via != "":
			arrow = fmt.Sprintf("-. \"%s\" .->", escape(strings.Join(text, ", ")))
		case len(text) > 0:
			arrow = fmt.Sprintf("-- \"%s\" -->", escape(strings.Join(text, ", ")))
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(e.StartNodeID), arrow, sanitizeMermaidID(e.EndNodeID))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds.
		sb.WriteString("    classDef selected fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		sb.WriteString("    classDef port fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")

		if overlay.Ports {
			starting, ending := core.ComputePorts(layer)
			seen := make(map[string]bool)
			for _, p := range append(starting, ending...) {
				if !seen[p.ID] {
					seen[p.ID] = true
					fmt.Fprintf(&sb, "    class %s port;\n", sanitizeMermaidID(p.ID))
				}
			}
		}
		seen := make(map[string]bool)
		for _, id := range overlay.Selected {
			safeID := sanitizeMermaidID(id)
			if _, ok := layer.Nodes[id]; ok && !seen[safeID] {
				seen[safeID] = true
				fmt.Fprintf(&sb, "    class %s selected;\n", safeID)
			}
		}
	}

	return sb.String()
}

func label(n *domain.Node) string {
	var s string
	switch {
	case n.IsLayer() && n.Layer != nil:
		s = fmt.Sprintf("%s <br/> in %d / out %d", n.Layer.Name, len(n.Layer.StartingNodes), len(n.Layer.EndingNodes))
		return escape(s)
	case n.Data != nil && n.Data.Title != "":
		s = n.Data.Title
	case n.Data != nil && n.Data.Text != "":
		s = n.Data.Text
	default:
		s = n.ID
	}
	if r := []rune(s); len(r) > maxLabel {
		s = string(r[:maxLabel-1]) + "…"
	}
	return escape(s)
}

func escape(s string) string {
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.ReplaceAll(s, "\n", " ")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, "#", "_")
	return s
}
