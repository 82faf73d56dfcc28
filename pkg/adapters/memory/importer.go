package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/goflowspace/goflow/pkg/domain"
	"github.com/goflowspace/goflow/pkg/ports"
)

// document is the JSON shape accepted by Importer.
type document struct {
	Nodes []*domain.Node `json:"nodes"`
	Edges []*domain.Edge `json:"edges"`
}

// Importer implements ports.Importer over a JSON document held in memory.
type Importer struct {
	raw []byte
}

// NewImporter creates an importer for a {"nodes": [...], "edges": [...]} document.
func NewImporter(raw []byte) *Importer {
	return &Importer{raw: raw}
}

// NewFromNodes creates an importer from domain objects.
// This handles serialization automatically, improving DX for tests.
func NewFromNodes(nodes []*domain.Node, edges []*domain.Edge) (*Importer, error) {
	for _, n := range nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("node missing ID")
		}
	}
	raw, err := json.Marshal(document{Nodes: nodes, Edges: edges})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return &Importer{raw: raw}, nil
}

// Import decodes the document. Every node is validated; edges must name
// nodes of the document.
func (i *Importer) Import(ctx context.Context) (*ports.Imported, error) {
	var doc document
	if err := json.Unmarshal(i.raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}

	known := make(map[string]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		if n == nil {
			return nil, fmt.Errorf("%w: null node", domain.ErrInvalidNode)
		}
		if n.ID != "" {
			known[n.ID] = true
		}
		if n.IsLayer() {
			return nil, fmt.Errorf("%w: layer node %q cannot be imported", domain.ErrInvalidNode, n.ID)
		}
		if n.Data == nil {
			n.Data = &domain.NodeData{}
		}
	}
	for _, e := range doc.Edges {
		if e == nil || !known[e.StartNodeID] || !known[e.EndNodeID] {
			return nil, fmt.Errorf("%w: edge endpoints must be imported nodes", domain.ErrInvalidEdge)
		}
	}
	return &ports.Imported{Nodes: doc.Nodes, Edges: doc.Edges}, nil
}
