package clipboard

import (
	"fmt"
	"strings"

	"github.com/goflowspace/goflow/pkg/domain"
	"github.com/goflowspace/goflow/pkg/ports"
)

// Mode selects how cloned layers are named.
type Mode int

const (
	// ModeCopy clones clipboard content captured by Copy.
	ModeCopy Mode = iota
	// ModeDuplicate clones a selection in place.
	ModeDuplicate
	// ModeCut clones clipboard content captured by Cut. Names are kept.
	ModeCut
	// ModeImport clones externally loaded content. Names are kept.
	ModeImport
)

func (m Mode) String() string {
	switch m {
	case ModeCopy:
		return "copy"
	case ModeDuplicate:
		return "duplicate"
	case ModeCut:
		return "cut"
	case ModeImport:
		return "import"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// renames reports whether cloned layers get the copy suffix.
func (m Mode) renames() bool {
	return m == ModeCopy || m == ModeDuplicate
}

// Target is the layer a clone will be inserted into.
type Target struct {
	LayerID string
	Depth   int
	// Taken reports ids already held by the destination repository. Optional.
	Taken func(id string) bool
}

// maxIDAttempts bounds retries when the generator hands out an id already in use.
const maxIDAttempts = 8

// Clone returns a copy of f with a fresh id for every node, edge and layer,
// re-parented to the target layer. Edge endpoints, handles, port ids,
// connection ids and parent references are rewritten through one id map.
// In copy and duplicate modes cloned layer names get the " copy" suffix.
// The returned map goes from original to fresh ids.
func Clone(f *Fragment, to Target, mode Mode, ids ports.IDGenerator) (*Fragment, map[string]string, error) {
	if err := ValidateHierarchy(f); err != nil {
		return nil, nil, err
	}

	used := make(map[string]bool)
	for _, id := range f.AllIDs() {
		used[id] = true
	}
	idMap := make(map[string]string)
	fresh := func(old string) error {
		for attempt := 0; attempt < maxIDAttempts; attempt++ {
			id, err := newID(ids)
			if err != nil {
				return err
			}
			if !used[id] && (to.Taken == nil || !to.Taken(id)) {
				used[id] = true
				idMap[old] = id
				return nil
			}
		}
		return fmt.Errorf("%w: could not draw an unused id for %s", domain.ErrIDGenerator, old)
	}

	top := make(map[string]bool, len(f.Nodes))
	for _, n := range f.Nodes {
		top[n.ID] = true
		if err := fresh(n.ID); err != nil {
			return nil, nil, err
		}
	}
	for _, l := range f.Layers {
		for _, id := range l.NodeIDs {
			if err := fresh(id); err != nil {
				return nil, nil, err
			}
		}
		for _, id := range l.EdgeIDs() {
			if err := fresh(id); err != nil {
				return nil, nil, err
			}
		}
	}
	var edges []*domain.Edge
	for _, e := range f.Edges {
		if !top[e.StartNodeID] || !top[e.EndNodeID] {
			continue
		}
		edges = append(edges, e)
		if err := fresh(e.ID); err != nil {
			return nil, nil, err
		}
	}

	remap := domain.IDMapper(func(id string) string {
		if n, ok := idMap[id]; ok {
			return n
		}
		return id
	})
	rename := func(name string) string {
		if mode.renames() && !strings.HasSuffix(name, domain.CopySuffix) {
			return name + domain.CopySuffix
		}
		return name
	}

	out := &Fragment{SourceLayerID: to.LayerID}
	for _, n := range f.Nodes {
		c := domain.CloneNode(n, remap)
		if c.IsLayer() {
			c.Layer.ParentLayerID = to.LayerID
			c.Layer.Name = rename(c.Layer.Name)
		}
		out.Nodes = append(out.Nodes, c)
	}
	for _, e := range edges {
		out.Edges = append(out.Edges, domain.CloneEdge(e, remap))
	}

	depth := map[string]int{to.LayerID: to.Depth}
	for _, l := range f.Layers {
		c := domain.CloneLayer(l, remap)
		if l.ParentLayerID == f.SourceLayerID {
			c.ParentLayerID = to.LayerID
		}
		c.Depth = depth[c.ParentLayerID] + 1
		depth[c.ID] = c.Depth
		c.Name = rename(c.Name)
		for _, n := range c.Nodes {
			if n.IsLayer() {
				n.Layer.Name = rename(n.Layer.Name)
			}
		}
		pruneConnections(c.Nodes, c.Edges)
		out.Layers = append(out.Layers, c)
	}

	topEdges := make(map[string]*domain.Edge, len(out.Edges))
	for _, e := range out.Edges {
		topEdges[e.ID] = e
	}
	topNodes := make(map[string]*domain.Node, len(out.Nodes))
	for _, n := range out.Nodes {
		topNodes[n.ID] = n
	}
	pruneConnections(topNodes, topEdges)

	return out, idMap, nil
}

// pruneConnections drops port connection ids that do not name one of edges,
// so ports only remember connections that were cloned along with them.
func pruneConnections(nodes map[string]*domain.Node, edges map[string]*domain.Edge) {
	for _, n := range nodes {
		if !n.IsLayer() {
			continue
		}
		for _, list := range [][]domain.Port{n.Layer.StartingNodes, n.Layer.EndingNodes} {
			for i := range list {
				p := &list[i]
				if p.ConnectionIDs == nil {
					continue
				}
				kept := make([]string, 0, len(p.ConnectionIDs))
				for _, id := range p.ConnectionIDs {
					if _, ok := edges[id]; ok {
						kept = append(kept, id)
					}
				}
				p.ConnectionIDs = kept
				p.IsConnected = len(kept) > 0
			}
		}
	}
}

func newID(ids ports.IDGenerator) (id string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", domain.ErrIDGenerator, r)
		}
	}()
	id = ids.NewID()
	if id == "" {
		return "", fmt.Errorf("%w: empty id", domain.ErrIDGenerator)
	}
	return id, nil
}
