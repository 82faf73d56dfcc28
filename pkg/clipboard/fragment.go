package clipboard

import (
	"fmt"

	"github.com/goflowspace/goflow/pkg/domain"
)

// Fragment is a detached piece of a hierarchy: top-level nodes of one layer,
// the edges between them, and the full content of every nested layer.
type Fragment struct {
	// SourceLayerID is the layer the top-level nodes belong to.
	SourceLayerID string
	// Nodes are the top-level nodes, in layer order.
	Nodes []*domain.Node
	// Edges link two top-level nodes.
	Edges []*domain.Edge
	// Layers are the nested layers, parents before children.
	Layers []*domain.Layer
}

// IsEmpty reports whether the fragment holds no node.
func (f *Fragment) IsEmpty() bool {
	return f == nil || len(f.Nodes) == 0
}

// NodeIDs returns the ids of the top-level nodes.
func (f *Fragment) NodeIDs() []string {
	out := make([]string, 0, len(f.Nodes))
	for _, n := range f.Nodes {
		out = append(out, n.ID)
	}
	return out
}

// EdgeIDs returns the ids of the top-level edges.
func (f *Fragment) EdgeIDs() []string {
	out := make([]string, 0, len(f.Edges))
	for _, e := range f.Edges {
		out = append(out, e.ID)
	}
	return out
}

// LayerIDs returns the ids of the nested layers, parents first.
func (f *Fragment) LayerIDs() []string {
	out := make([]string, 0, len(f.Layers))
	for _, l := range f.Layers {
		out = append(out, l.ID)
	}
	return out
}

// AllIDs returns every node, edge and layer id of the fragment.
func (f *Fragment) AllIDs() []string {
	out := append(f.NodeIDs(), f.EdgeIDs()...)
	for _, l := range f.Layers {
		out = append(out, l.ID)
		out = append(out, l.NodeIDs...)
		out = append(out, l.EdgeIDs()...)
	}
	return out
}

// Clone returns a deep copy with the same ids.
func (f *Fragment) Clone() *Fragment {
	if f == nil {
		return nil
	}
	out := &Fragment{
		SourceLayerID: f.SourceLayerID,
		Nodes:         make([]*domain.Node, 0, len(f.Nodes)),
		Edges:         make([]*domain.Edge, 0, len(f.Edges)),
		Layers:        make([]*domain.Layer, 0, len(f.Layers)),
	}
	for _, n := range f.Nodes {
		out.Nodes = append(out.Nodes, n.Clone())
	}
	for _, e := range f.Edges {
		out.Edges = append(out.Edges, e.Clone())
	}
	for _, l := range f.Layers {
		out.Layers = append(out.Layers, l.Clone())
	}
	return out
}

// Reader is the read side of a layer repository.
type Reader interface {
	Layer(layerID string) (*domain.Layer, error)
	Descendants(layerID string) []string
}

// Capture copies the selected nodes of a layer, the edges between them and
// every layer nested below a selected layer node. Ids are kept; edges that
// cross the selection boundary are left out.
func Capture(r Reader, layerID string, selection []string) (*Fragment, error) {
	if len(selection) == 0 {
		return nil, domain.ErrEmptySelection
	}
	src, err := r.Layer(layerID)
	if err != nil {
		return nil, err
	}

	selected := make(map[string]bool, len(selection))
	for _, id := range selection {
		if _, ok := src.Nodes[id]; !ok {
			return nil, fmt.Errorf("%w: %s in layer %s", domain.ErrNodeNotFound, id, layerID)
		}
		selected[id] = true
	}

	f := &Fragment{SourceLayerID: layerID}
	for _, n := range src.OrderedNodes() {
		if !selected[n.ID] {
			continue
		}
		f.Nodes = append(f.Nodes, n)
		if !n.IsLayer() {
			continue
		}
		for _, id := range append([]string{n.ID}, r.Descendants(n.ID)...) {
			l, err := r.Layer(id)
			if err != nil {
				return nil, err
			}
			f.Layers = append(f.Layers, l)
		}
	}
	for _, id := range src.EdgeIDs() {
		e := src.Edges[id]
		if selected[e.StartNodeID] && selected[e.EndNodeID] {
			f.Edges = append(f.Edges, e)
		}
	}
	return f, nil
}

// ValidateHierarchy checks that a fragment is self-consistent: ids are
// unique, every nested layer is owned by a layer node of the fragment and
// reaches SourceLayerID through its parent chain without a cycle, and
// top-level edges only link top-level nodes.
func ValidateHierarchy(f *Fragment) error {
	if f.IsEmpty() {
		return domain.ErrEmptySelection
	}

	top := make(map[string]bool, len(f.Nodes))
	owners := make(map[string]string)
	for _, n := range f.Nodes {
		if top[n.ID] {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateNode, n.ID)
		}
		top[n.ID] = true
		if n.IsLayer() {
			owners[n.ID] = f.SourceLayerID
		}
	}

	layers := make(map[string]*domain.Layer, len(f.Layers))
	for _, l := range f.Layers {
		if _, dup := layers[l.ID]; dup || l.ID == f.SourceLayerID {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateLayer, l.ID)
		}
		layers[l.ID] = l
		for _, n := range l.Nodes {
			if n.IsLayer() {
				owners[n.ID] = l.ID
			}
		}
	}

	for id := range owners {
		if _, ok := layers[id]; !ok {
			return fmt.Errorf("%w: layer node %s has no layer content", domain.ErrLayerNotFound, id)
		}
	}

	for _, l := range f.Layers {
		owner, ok := owners[l.ID]
		if !ok {
			return fmt.Errorf("%w: layer %s has no layer node", domain.ErrInvalidNode, l.ID)
		}
		if l.ParentLayerID != owner {
			return fmt.Errorf("%w: layer %s claims parent %s but lives in %s", domain.ErrInvalidNode, l.ID, l.ParentLayerID, owner)
		}
		seen := make(map[string]bool)
		for cur := l.ID; ; {
			if seen[cur] {
				return fmt.Errorf("%w: layer %s", domain.ErrCycle, l.ID)
			}
			seen[cur] = true
			parent := layers[cur].ParentLayerID
			if parent == f.SourceLayerID {
				break
			}
			if _, ok := layers[parent]; !ok {
				return fmt.Errorf("%w: %s (ancestor of %s)", domain.ErrLayerNotFound, parent, l.ID)
			}
			cur = parent
		}
	}

	for _, e := range f.Edges {
		if !top[e.StartNodeID] || !top[e.EndNodeID] {
			return fmt.Errorf("%w: %s leaves the fragment", domain.ErrInvalidEdge, e.ID)
		}
	}
	return nil
}
