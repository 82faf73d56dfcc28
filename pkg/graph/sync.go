package graph

import (
	"context"

	"github.com/goflowspace/goflow/pkg/domain"
)

// ComputePorts derives the ports a layer exposes to its parent.
// A node with no incoming internal edge is a starting port; a node with no
// outgoing internal edge is an ending port. Isolated nodes are both.
// Ports follow the layer's node order and carry no connection state.
func ComputePorts(l *domain.Layer) (starting, ending []domain.Port) {
	hasIn := make(map[string]bool, len(l.Edges))
	hasOut := make(map[string]bool, len(l.Edges))
	for _, e := range l.Edges {
		hasOut[e.StartNodeID] = true
		hasIn[e.EndNodeID] = true
	}

	starting = []domain.Port{}
	ending = []domain.Port{}
	for _, n := range l.OrderedNodes() {
		if !hasIn[n.ID] {
			starting = append(starting, domain.PortFor(n))
		}
		if !hasOut[n.ID] {
			ending = append(ending, domain.PortFor(n))
		}
	}
	return starting, ending
}

// ReconcilePorts merges freshly computed ports with the previous list by id:
// ports that survive keep their IsConnected flag and ConnectionIDs.
func ReconcilePorts(prev, next []domain.Port) []domain.Port {
	out := make([]domain.Port, len(next))
	for i, p := range next {
		if j := domain.FindPort(prev, p.ID); j >= 0 {
			p.IsConnected = prev[j].IsConnected
			p.ConnectionIDs = append([]string{}, prev[j].ConnectionIDs...)
		}
		out[i] = p
	}
	return out
}

// SyncPorts recomputes the ports of layerID as seen from its parent, writes
// them into the parent's layer node, and propagates up the ancestor chain.
func (s *Store) SyncPorts(ctx context.Context, layerID string) error {
	s.mu.Lock()
	if _, err := s.layerLocked(layerID); err != nil {
		s.mu.Unlock()
		return err
	}
	fx := &effects{}
	s.syncLocked(fx, layerID)
	s.mu.Unlock()

	s.flush(ctx, fx)
	return nil
}

// syncLocked walks from each layer up to the root, refreshing every layer
// node on the way. A layer is visited at most once per call, which bounds the
// walk by the nesting depth even on a corrupted hierarchy.
func (s *Store) syncLocked(fx *effects, layerIDs ...string) {
	visited := make(map[string]bool)
	for _, start := range layerIDs {
		for id := start; id != "" && !visited[id]; {
			visited[id] = true
			l, ok := s.layers[id]
			if !ok || l.ParentLayerID == "" {
				break
			}
			parent, ok := s.layers[l.ParentLayerID]
			if !ok {
				s.logger.Debug("port sync stopped at detached layer", "layer", id, "parent", l.ParentLayerID)
				break
			}
			node, ok := parent.Nodes[l.ID]
			if !ok || !node.IsLayer() {
				break
			}

			starting, ending := ComputePorts(l)
			node.Layer.StartingNodes = ReconcilePorts(node.Layer.StartingNodes, starting)
			node.Layer.EndingNodes = ReconcilePorts(node.Layer.EndingNodes, ending)

			fx.ops = append(fx.ops, s.opLocked(domain.OpLayerPortsUpdated, parent.ID, map[string]any{
				"layerId":       l.ID,
				"startingNodes": domain.ClonePorts(node.Layer.StartingNodes, domain.Identity),
				"endingNodes":   domain.ClonePorts(node.Layer.EndingNodes, domain.Identity),
			}))
			fx.events = append(fx.events, &domain.PortsEvent{
				EventBase:     domain.EventBase{Timestamp: s.now(), Type: domain.EventPortsSynced},
				LayerID:       l.ID,
				StartingCount: len(node.Layer.StartingNodes),
				EndingCount:   len(node.Layer.EndingNodes),
			})
			id = parent.ID
		}
	}
}
