package dsl

import (
	"fmt"

	"github.com/goflowspace/goflow/pkg/adapters/memory"
	"github.com/goflowspace/goflow/pkg/domain"
)

// Builder manages the graph construction.
type Builder struct {
	nodes map[string]*NodeBuilder
	order []string
}

// New creates a new graph builder.
func New() *Builder {
	return &Builder{
		nodes: make(map[string]*NodeBuilder),
	}
}

// Add creates a new narrative node in the graph.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		node:    domain.NewNarrative(id, domain.Coordinates{}, domain.NodeData{}),
		builder: b,
	}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// Nodes returns the built nodes in insertion order.
func (b *Builder) Nodes() []*domain.Node {
	out := make([]*domain.Node, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.nodes[id].Build())
	}
	return out
}

// Edges returns the edges declared with Go and When, in declaration order.
// Edge ids are derived from the endpoints: "start->end".
func (b *Builder) Edges() []*domain.Edge {
	var out []*domain.Edge
	for _, id := range b.order {
		for _, l := range b.nodes[id].links {
			out = append(out, &domain.Edge{
				ID:          id + "->" + l.target,
				StartNodeID: id,
				EndNodeID:   l.target,
				Conditions:  domain.CloneConditions(l.conditions),
			})
		}
	}
	return out
}

// Build compiles the graph into an importer that editors can consume.
// Every link must point to a declared node.
func (b *Builder) Build() (*memory.Importer, error) {
	for _, id := range b.order {
		for _, l := range b.nodes[id].links {
			if _, ok := b.nodes[l.target]; !ok {
				return nil, fmt.Errorf("%w: %s links to undeclared node %q", domain.ErrInvalidEdge, id, l.target)
			}
			if b.nodes[id].node.Kind == domain.KindChoice && b.nodes[l.target].node.Kind == domain.KindChoice {
				return nil, fmt.Errorf("%w: %s -> %s", domain.ErrChoiceToChoice, id, l.target)
			}
		}
	}

	importer, err := memory.NewFromNodes(b.Nodes(), b.Edges())
	if err != nil {
		return nil, fmt.Errorf("failed to build importer: %w", err)
	}
	return importer, nil
}
