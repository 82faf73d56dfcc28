package domain

import (
	"strings"
	"time"
)

// OpType names a change record kind.
type OpType string

// Operation types. Every command-emitted type has an ".undo" variant (see OpType.Undo).
const (
	OpNodeAdded         OpType = "node.added"
	OpNodeDeleted       OpType = "node.deleted"
	OpNodeMoved         OpType = "node.moved"
	OpNodeUpdated       OpType = "node.updated"
	OpEdgeAdded         OpType = "edge.added"
	OpEdgeDeleted       OpType = "edge.deleted"
	OpEdgeUpdated       OpType = "edge.updated"
	OpLayerAdded        OpType = "layer.added"
	OpLayerUpdated      OpType = "layer.updated"
	OpLayerPortsUpdated OpType = "layer.endings.updated"
	OpNodesDuplicated   OpType = "nodes.duplicated"
	OpNodesPasted       OpType = "nodes.pasted"
	OpNodesCut          OpType = "nodes.cut"
	OpNodesDeleted      OpType = "nodes.deleted"
	OpNodesImported     OpType = "nodes.imported"
)

const undoSuffix = ".undo"

// Undo returns the paired undo type.
func (t OpType) Undo() OpType {
	if t.IsUndo() {
		return t
	}
	return t + undoSuffix
}

// IsUndo reports whether t is an ".undo" variant.
func (t OpType) IsUndo() bool {
	return strings.HasSuffix(string(t), undoSuffix)
}

// Operation is the ordered change record handed to the persistence/sync sink
// after a mutation has been applied in memory.
type Operation struct {
	Type       OpType         `json:"opType"`
	Payload    map[string]any `json:"payload"`
	ProjectID  string         `json:"projectId"`
	TimelineID string         `json:"timelineId"`
	LayerID    string         `json:"layerId"`
	Timestamp  time.Time      `json:"timestamp"`
}
