package dsl

import "github.com/goflowspace/goflow/pkg/domain"

type link struct {
	target     string
	conditions []domain.ConditionGroup
}

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node    *domain.Node
	links   []link
	builder *Builder
}

// Narrative sets the text of the node and marks it as a narrative node.
func (n *NodeBuilder) Narrative(text string) *NodeBuilder {
	n.node.Kind = domain.KindNarrative
	n.node.Data.Text = text
	return n
}

// Choice sets the text of the node and marks it as a choice node.
func (n *NodeBuilder) Choice(text string) *NodeBuilder {
	n.node.Kind = domain.KindChoice
	n.node.Data.Text = text
	return n
}

// Note sets the text of the node and marks it as a note.
func (n *NodeBuilder) Note(text string) *NodeBuilder {
	n.node.Kind = domain.KindNote
	n.node.Data.Text = text
	return n
}

// Title sets the node title.
func (n *NodeBuilder) Title(title string) *NodeBuilder {
	n.node.Data.Title = title
	return n
}

// Color sets the node color.
func (n *NodeBuilder) Color(color string) *NodeBuilder {
	n.node.Data.Color = color
	return n
}

// At places the node on the canvas.
func (n *NodeBuilder) At(x, y float64) *NodeBuilder {
	n.node.Coordinates = domain.Coordinates{X: x, Y: y}
	return n
}

// Go adds an unconditional edge to the target node.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	n.links = append(n.links, link{target: target})
	return n
}

// When adds an edge to the target node guarded by one "and" group holding
// the given conditions.
func (n *NodeBuilder) When(target string, conditions ...domain.Condition) *NodeBuilder {
	group := domain.ConditionGroup{
		ID:         n.node.ID + "->" + target,
		Operator:   "and",
		Conditions: conditions,
	}
	n.links = append(n.links, link{target: target, conditions: []domain.ConditionGroup{group}})
	return n
}

// Build returns a copy of the underlying domain.Node.
// This is primarily used by the Builder, but exposed for advanced usage.
func (n *NodeBuilder) Build() *domain.Node {
	return n.node.Clone()
}
