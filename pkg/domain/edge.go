package domain

// Condition is a single predicate inside a condition group.
// Its Params are opaque to the editor core.
type Condition struct {
	ID     string         `json:"id" yaml:"id"`
	Type   string         `json:"type" yaml:"type"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// ConditionGroup is an ordered group of conditions joined by Operator.
type ConditionGroup struct {
	ID         string      `json:"id" yaml:"id"`
	Operator   string      `json:"operator" yaml:"operator"`
	Conditions []Condition `json:"conditions" yaml:"conditions"`
}

// Edge links two nodes of the same layer.
// SourceHandle is set when the start node is a layer node and the edge leaves
// through one of its ending ports; TargetHandle is set when the end node is a
// layer node and the edge enters through one of its starting ports.
type Edge struct {
	ID           string           `json:"id" yaml:"id"`
	StartNodeID  string           `json:"startNodeId" yaml:"startNodeId"`
	EndNodeID    string           `json:"endNodeId" yaml:"endNodeId"`
	SourceHandle *PortRef         `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty"`
	TargetHandle *PortRef         `json:"targetHandle,omitempty" yaml:"targetHandle,omitempty"`
	Conditions   []ConditionGroup `json:"conditions" yaml:"conditions"`
}

// EdgeKey identifies an edge by endpoints and handles, for duplicate detection.
type EdgeKey struct {
	Start  string
	End    string
	Source string
	Target string
}

// Key returns the duplicate-detection key of the edge.
func (e *Edge) Key() EdgeKey {
	return EdgeKey{
		Start:  e.StartNodeID,
		End:    e.EndNodeID,
		Source: e.SourceHandle.ID(),
		Target: e.TargetHandle.ID(),
	}
}

// Touches reports whether the edge has nodeID as one of its endpoints.
func (e *Edge) Touches(nodeID string) bool {
	return e.StartNodeID == nodeID || e.EndNodeID == nodeID
}
