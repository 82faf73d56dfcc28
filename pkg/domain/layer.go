package domain

import "sort"

// Layer is one graph of the hierarchy.
// NodeIDs mirrors the key set of Nodes in insertion order.
type Layer struct {
	ID            string           `json:"id" yaml:"id"`
	Name          string           `json:"name" yaml:"name"`
	Description   string           `json:"description,omitempty" yaml:"description,omitempty"`
	ParentLayerID string           `json:"parentLayerId,omitempty" yaml:"parentLayerId,omitempty"`
	Depth         int              `json:"depth" yaml:"depth"`
	Nodes         map[string]*Node `json:"nodes" yaml:"nodes"`
	Edges         map[string]*Edge `json:"edges" yaml:"edges"`
	NodeIDs       []string         `json:"nodeIds" yaml:"nodeIds"`
}

// NewLayer creates an empty layer.
func NewLayer(id, name, parentLayerID string, depth int) *Layer {
	return &Layer{
		ID:            id,
		Name:          name,
		ParentLayerID: parentLayerID,
		Depth:         depth,
		Nodes:         make(map[string]*Node),
		Edges:         make(map[string]*Edge),
		NodeIDs:       []string{},
	}
}

// IsRoot reports whether the layer has no parent.
func (l *Layer) IsRoot() bool {
	return l.ParentLayerID == ""
}

// Node returns the node with the given id.
func (l *Layer) Node(id string) (*Node, bool) {
	n, ok := l.Nodes[id]
	return n, ok
}

// PutNode inserts n, or replaces the node with the same id in place.
func (l *Layer) PutNode(n *Node) {
	if _, exists := l.Nodes[n.ID]; !exists {
		l.NodeIDs = append(l.NodeIDs, n.ID)
	}
	l.Nodes[n.ID] = n
}

// DeleteNode removes the node from Nodes and NodeIDs. It does not touch edges.
func (l *Layer) DeleteNode(id string) bool {
	if _, ok := l.Nodes[id]; !ok {
		return false
	}
	delete(l.Nodes, id)
	for i, nid := range l.NodeIDs {
		if nid == id {
			l.NodeIDs = append(l.NodeIDs[:i], l.NodeIDs[i+1:]...)
			break
		}
	}
	return true
}

// OrderedNodes returns the nodes in NodeIDs order.
func (l *Layer) OrderedNodes() []*Node {
	out := make([]*Node, 0, len(l.NodeIDs))
	for _, id := range l.NodeIDs {
		if n, ok := l.Nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// EdgeIDs returns the edge ids sorted for deterministic iteration.
func (l *Layer) EdgeIDs() []string {
	ids := make([]string, 0, len(l.Edges))
	for id := range l.Edges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// EdgesOf returns the edges touching nodeID, sorted by id.
func (l *Layer) EdgesOf(nodeID string) []*Edge {
	var out []*Edge
	for _, id := range l.EdgeIDs() {
		if e := l.Edges[id]; e.Touches(nodeID) {
			out = append(out, e)
		}
	}
	return out
}

// FindEdge returns the edge with the given key, if any.
func (l *Layer) FindEdge(key EdgeKey) (*Edge, bool) {
	for _, e := range l.Edges {
		if e.Key() == key {
			return e, true
		}
	}
	return nil, false
}

// LayerNodes returns the ids of the layer-kind nodes, in NodeIDs order.
func (l *Layer) LayerNodes() []string {
	var out []string
	for _, n := range l.OrderedNodes() {
		if n.IsLayer() {
			out = append(out, n.ID)
		}
	}
	return out
}
