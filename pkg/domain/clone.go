package domain

// IDMapper rewrites an identifier while cloning.
// Returning the input unchanged keeps the reference as is.
type IDMapper func(id string) string

// Identity is the IDMapper that keeps every id.
func Identity(id string) string { return id }

func (m IDMapper) apply(id string) string {
	if m == nil || id == "" {
		return id
	}
	return m(id)
}

// CloneNode returns a deep copy of n with every id reference passed through m.
func CloneNode(n *Node, m IDMapper) *Node {
	if n == nil {
		return nil
	}
	out := &Node{
		ID:          m.apply(n.ID),
		Kind:        n.Kind,
		Coordinates: n.Coordinates,
	}
	switch n.Kind {
	case KindNarrative, KindChoice, KindNote:
		if n.Data != nil {
			d := *n.Data
			out.Data = &d
		}
	case KindLayer:
		if n.Layer != nil {
			out.Layer = &LayerInfo{
				Name:          n.Layer.Name,
				Description:   n.Layer.Description,
				ParentLayerID: m.apply(n.Layer.ParentLayerID),
				StartingNodes: ClonePorts(n.Layer.StartingNodes, m),
				EndingNodes:   ClonePorts(n.Layer.EndingNodes, m),
			}
		}
	}
	return out
}

// ClonePorts deep-copies a port list, remapping port ids and connection ids.
func ClonePorts(ports []Port, m IDMapper) []Port {
	if ports == nil {
		return nil
	}
	out := make([]Port, 0, len(ports))
	for _, p := range ports {
		out = append(out, ClonePort(p, m))
	}
	return out
}

// ClonePort deep-copies one port.
func ClonePort(p Port, m IDMapper) Port {
	var conns []string
	if p.ConnectionIDs != nil {
		conns = make([]string, 0, len(p.ConnectionIDs))
		for _, id := range p.ConnectionIDs {
			conns = append(conns, m.apply(id))
		}
	}
	return Port{
		ID:            m.apply(p.ID),
		Kind:          p.Kind,
		Data:          p.Data,
		IsConnected:   p.IsConnected,
		ConnectionIDs: conns,
	}
}

// CloneEdge deep-copies e, remapping its id, endpoints and handles.
func CloneEdge(e *Edge, m IDMapper) *Edge {
	if e == nil {
		return nil
	}
	out := &Edge{
		ID:          m.apply(e.ID),
		StartNodeID: m.apply(e.StartNodeID),
		EndNodeID:   m.apply(e.EndNodeID),
		Conditions:  CloneConditions(e.Conditions),
	}
	if e.SourceHandle != nil {
		out.SourceHandle = &PortRef{PortID: m.apply(e.SourceHandle.PortID)}
	}
	if e.TargetHandle != nil {
		out.TargetHandle = &PortRef{PortID: m.apply(e.TargetHandle.PortID)}
	}
	return out
}

// CloneConditions deep-copies condition groups. Condition params are copied
// recursively through maps and slices; scalar values are shared.
func CloneConditions(groups []ConditionGroup) []ConditionGroup {
	if groups == nil {
		return nil
	}
	out := make([]ConditionGroup, 0, len(groups))
	for _, g := range groups {
		cg := ConditionGroup{ID: g.ID, Operator: g.Operator, Conditions: make([]Condition, 0, len(g.Conditions))}
		for _, c := range g.Conditions {
			cc := Condition{ID: c.ID, Type: c.Type}
			if c.Params != nil {
				cc.Params = cloneValue(c.Params).(map[string]any)
			}
			cg.Conditions = append(cg.Conditions, cc)
		}
		out = append(out, cg)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// CloneLayer deep-copies l. Node and edge map keys follow the remapped ids.
func CloneLayer(l *Layer, m IDMapper) *Layer {
	if l == nil {
		return nil
	}
	out := &Layer{
		ID:            m.apply(l.ID),
		Name:          l.Name,
		Description:   l.Description,
		ParentLayerID: m.apply(l.ParentLayerID),
		Depth:         l.Depth,
		Nodes:         make(map[string]*Node, len(l.Nodes)),
		Edges:         make(map[string]*Edge, len(l.Edges)),
		NodeIDs:       make([]string, 0, len(l.NodeIDs)),
	}
	for _, id := range l.NodeIDs {
		n, ok := l.Nodes[id]
		if !ok {
			continue
		}
		c := CloneNode(n, m)
		out.Nodes[c.ID] = c
		out.NodeIDs = append(out.NodeIDs, c.ID)
	}
	for _, e := range l.Edges {
		c := CloneEdge(e, m)
		out.Edges[c.ID] = c
	}
	return out
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node { return CloneNode(n, Identity) }

// Clone returns a deep copy of the edge.
func (e *Edge) Clone() *Edge { return CloneEdge(e, Identity) }

// Clone returns a deep copy of the layer.
func (l *Layer) Clone() *Layer { return CloneLayer(l, Identity) }
