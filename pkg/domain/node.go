package domain

import "fmt"

// NodeKind discriminates the node variants.
type NodeKind string

const (
	// KindNarrative is a dialogue/prose step.
	KindNarrative NodeKind = "narrative"
	// KindChoice is a player choice.
	KindChoice NodeKind = "choice"
	// KindNote is an authoring annotation with no narrative effect.
	KindNote NodeKind = "note"
	// KindLayer is a container whose content lives in its own Layer.
	KindLayer NodeKind = "layer"
)

// Valid reports whether k is one of the known kinds.
func (k NodeKind) Valid() bool {
	switch k {
	case KindNarrative, KindChoice, KindNote, KindLayer:
		return true
	}
	return false
}

// Coordinates is the canvas position of a node.
type Coordinates struct {
	X float64 `json:"x" yaml:"x" mapstructure:"x"`
	Y float64 `json:"y" yaml:"y" mapstructure:"y"`
}

// NodeData is the payload of narrative, choice and note nodes.
type NodeData struct {
	Text   string  `json:"text,omitempty" yaml:"text,omitempty" mapstructure:"text"`
	Title  string  `json:"title,omitempty" yaml:"title,omitempty" mapstructure:"title"`
	Color  string  `json:"color,omitempty" yaml:"color,omitempty" mapstructure:"color"`
	Height float64 `json:"height,omitempty" yaml:"height,omitempty" mapstructure:"height"`
}

// LayerInfo is the payload of a layer node.
// StartingNodes and EndingNodes are the ports of the nested layer as seen
// from the layer that contains this node.
type LayerInfo struct {
	Name          string `json:"name" yaml:"name"`
	Description   string `json:"description,omitempty" yaml:"description,omitempty"`
	ParentLayerID string `json:"parentLayerId" yaml:"parentLayerId"`
	StartingNodes []Port `json:"startingNodes" yaml:"startingNodes"`
	EndingNodes   []Port `json:"endingNodes" yaml:"endingNodes"`
}

// Node is a vertex of a layer graph.
// Exactly one of Data or Layer is set, selected by Kind.
type Node struct {
	ID          string      `json:"id" yaml:"id"`
	Kind        NodeKind    `json:"type" yaml:"type"`
	Coordinates Coordinates `json:"coordinates" yaml:"coordinates"`
	Data        *NodeData   `json:"data,omitempty" yaml:"data,omitempty"`
	Layer       *LayerInfo  `json:"layer,omitempty" yaml:"layer,omitempty"`
}

// NewNarrative creates a narrative node.
func NewNarrative(id string, at Coordinates, data NodeData) *Node {
	return &Node{ID: id, Kind: KindNarrative, Coordinates: at, Data: &data}
}

// NewChoice creates a choice node.
func NewChoice(id string, at Coordinates, data NodeData) *Node {
	return &Node{ID: id, Kind: KindChoice, Coordinates: at, Data: &data}
}

// NewNote creates a note node.
func NewNote(id string, at Coordinates, data NodeData) *Node {
	return &Node{ID: id, Kind: KindNote, Coordinates: at, Data: &data}
}

// NewLayerNode creates a layer node owned by parentLayerID, with empty ports.
func NewLayerNode(id string, at Coordinates, name, parentLayerID string) *Node {
	return &Node{
		ID:          id,
		Kind:        KindLayer,
		Coordinates: at,
		Layer: &LayerInfo{
			Name:          name,
			ParentLayerID: parentLayerID,
			StartingNodes: []Port{},
			EndingNodes:   []Port{},
		},
	}
}

// IsLayer reports whether the node is a layer container.
func (n *Node) IsLayer() bool {
	return n != nil && n.Kind == KindLayer
}

// Label returns a human readable label for the node.
func (n *Node) Label() string {
	switch n.Kind {
	case KindLayer:
		if n.Layer != nil && n.Layer.Name != "" {
			return n.Layer.Name
		}
	case KindNarrative, KindChoice, KindNote:
		if n.Data != nil {
			if n.Data.Title != "" {
				return n.Data.Title
			}
			if n.Data.Text != "" {
				return n.Data.Text
			}
		}
	}
	return n.ID
}

// Validate checks that the payload matches the kind.
func (n *Node) Validate() error {
	if n == nil {
		return fmt.Errorf("%w: nil node", ErrInvalidNode)
	}
	if n.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidNode)
	}
	switch n.Kind {
	case KindNarrative, KindChoice, KindNote:
		if n.Data == nil {
			return fmt.Errorf("%w: %s node %q has no data", ErrInvalidNode, n.Kind, n.ID)
		}
		if n.Layer != nil {
			return fmt.Errorf("%w: %s node %q carries layer info", ErrInvalidNode, n.Kind, n.ID)
		}
	case KindLayer:
		if n.Layer == nil {
			return fmt.Errorf("%w: layer node %q has no layer info", ErrInvalidNode, n.ID)
		}
		if n.Data != nil {
			return fmt.Errorf("%w: layer node %q carries node data", ErrInvalidNode, n.ID)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidNode, n.Kind)
	}
	return nil
}

// Port is a connectable handle a layer node exposes for one of its internal nodes.
type Port struct {
	ID            string   `json:"id" yaml:"id"`
	Kind          NodeKind `json:"type" yaml:"type"`
	Data          NodeData `json:"data" yaml:"data"`
	IsConnected   bool     `json:"isConnected" yaml:"isConnected"`
	ConnectionIDs []string `json:"connectionIds" yaml:"connectionIds"`
}

// PortFor projects an internal node into a port with no connections.
func PortFor(n *Node) Port {
	p := Port{ID: n.ID, Kind: n.Kind, ConnectionIDs: []string{}}
	switch n.Kind {
	case KindLayer:
		if n.Layer != nil {
			p.Data = NodeData{Title: n.Layer.Name, Text: n.Layer.Description}
		}
	case KindNarrative, KindChoice, KindNote:
		if n.Data != nil {
			p.Data = *n.Data
		}
	}
	return p
}

// FindPort returns the index of the port with the given id, or -1.
func FindPort(ports []Port, id string) int {
	for i := range ports {
		if ports[i].ID == id {
			return i
		}
	}
	return -1
}

// PortRef anchors an edge endpoint on a port of a layer node.
type PortRef struct {
	PortID string `json:"portId" yaml:"portId"`
}

// Ref builds a PortRef, or nil for an empty id.
func Ref(portID string) *PortRef {
	if portID == "" {
		return nil
	}
	return &PortRef{PortID: portID}
}

// ID returns the referenced port id, or "" for a nil reference.
func (r *PortRef) ID() string {
	if r == nil {
		return ""
	}
	return r.PortID
}
