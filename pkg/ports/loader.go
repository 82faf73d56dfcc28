package ports

import (
	"context"

	"github.com/goflowspace/goflow/pkg/domain"
)

// Imported is a flat set of nodes and edges read from an external source.
// Ids are source ids; the editor remaps them to fresh ids on insertion.
type Imported struct {
	Nodes []*domain.Node
	Edges []*domain.Edge
}

// Importer defines how external documents are turned into graph content.
type Importer interface {
	Import(ctx context.Context) (*Imported, error)
}
