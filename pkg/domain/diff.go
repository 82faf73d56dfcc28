package domain

import (
	"reflect"
	"sort"
)

// LayerDiff represents the changes between two versions of a layer.
// It is designed to be serialized to JSON so clients can apply partial updates.
type LayerDiff struct {
	// LayerID is always present to identify the target.
	LayerID string `json:"layer_id"`

	AddedNodes   []string `json:"added_nodes,omitempty"`
	RemovedNodes []string `json:"removed_nodes,omitempty"`
	// MovedNodes lists nodes whose coordinates changed.
	MovedNodes []string `json:"moved_nodes,omitempty"`
	// ChangedNodes lists nodes whose payload (data, layer info, ports) changed.
	ChangedNodes []string `json:"changed_nodes,omitempty"`

	AddedEdges   []string `json:"added_edges,omitempty"`
	RemovedEdges []string `json:"removed_edges,omitempty"`
	ChangedEdges []string `json:"changed_edges,omitempty"`

	// Renamed is set when the layer name or description changed.
	Renamed bool `json:"renamed,omitempty"`
}

// DiffLayers calculates the difference between oldLayer and newLayer.
// If oldLayer is nil, the diff lists everything in newLayer as added.
// It returns nil when nothing changed.
func DiffLayers(oldLayer, newLayer *Layer) *LayerDiff {
	if newLayer == nil {
		return nil
	}
	if oldLayer == nil {
		oldLayer = NewLayer(newLayer.ID, newLayer.Name, newLayer.ParentLayerID, newLayer.Depth)
		oldLayer.Description = newLayer.Description
	}

	diff := &LayerDiff{LayerID: newLayer.ID}

	for id, n := range newLayer.Nodes {
		old, ok := oldLayer.Nodes[id]
		if !ok {
			diff.AddedNodes = append(diff.AddedNodes, id)
			continue
		}
		if old.Coordinates != n.Coordinates {
			diff.MovedNodes = append(diff.MovedNodes, id)
		}
		if old.Kind != n.Kind || !reflect.DeepEqual(old.Data, n.Data) || !reflect.DeepEqual(old.Layer, n.Layer) {
			diff.ChangedNodes = append(diff.ChangedNodes, id)
		}
	}
	for id := range oldLayer.Nodes {
		if _, ok := newLayer.Nodes[id]; !ok {
			diff.RemovedNodes = append(diff.RemovedNodes, id)
		}
	}

	for id, e := range newLayer.Edges {
		old, ok := oldLayer.Edges[id]
		if !ok {
			diff.AddedEdges = append(diff.AddedEdges, id)
			continue
		}
		if !reflect.DeepEqual(old, e) {
			diff.ChangedEdges = append(diff.ChangedEdges, id)
		}
	}
	for id := range oldLayer.Edges {
		if _, ok := newLayer.Edges[id]; !ok {
			diff.RemovedEdges = append(diff.RemovedEdges, id)
		}
	}

	diff.Renamed = oldLayer.Name != newLayer.Name || oldLayer.Description != newLayer.Description

	for _, s := range [][]string{
		diff.AddedNodes, diff.RemovedNodes, diff.MovedNodes, diff.ChangedNodes,
		diff.AddedEdges, diff.RemovedEdges, diff.ChangedEdges,
	} {
		sort.Strings(s)
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *LayerDiff) IsEmpty() bool {
	return len(d.AddedNodes) == 0 &&
		len(d.RemovedNodes) == 0 &&
		len(d.MovedNodes) == 0 &&
		len(d.ChangedNodes) == 0 &&
		len(d.AddedEdges) == 0 &&
		len(d.RemovedEdges) == 0 &&
		len(d.ChangedEdges) == 0 &&
		!d.Renamed
}
