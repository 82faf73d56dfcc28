package schema

import (
	"fmt"
	"sort"

	"github.com/goflowspace/goflow/pkg/domain"
	"github.com/goflowspace/goflow/pkg/graph"
)

// Option configures ValidateProject.
type Option func(*options)

type options struct {
	conditions ConditionSchemas
}

// WithConditionSchemas checks the parameters of every edge condition whose
// type has a schema.
func WithConditionSchemas(s ConditionSchemas) Option {
	return func(o *options) {
		o.conditions = s
	}
}

// ValidateProject checks the structural invariants of a project snapshot:
//   - the hierarchy is acyclic and every layer is reachable from the root;
//   - each non-root layer has exactly one layer node, in its parent;
//   - node lists, node payloads and edge endpoints are consistent;
//   - choice nodes are never connected directly to each other;
//   - the ports of every layer node match the topology of its layer, and
//     port connection ids name edges that enter or leave through that port.
//
// All failures are returned together as an *AggregateError.
func ValidateProject(p *domain.Project, opts ...Option) error {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	c := &collector{}
	if p == nil {
		c.add("project", "is nil", nil)
		return c.err()
	}

	rootID := p.RootLayerID
	if rootID == "" {
		rootID = domain.RootLayerID
	}
	if _, ok := p.Layers[rootID]; !ok {
		c.add("rootLayerId", "root layer is missing", rootID)
	} else if err := graph.CheckHierarchy(p.Layers, rootID); err != nil {
		c.add("layers", err.Error(), nil)
	}

	ids := make([]string, 0, len(p.Layers))
	for id := range p.Layers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		l := p.Layers[id]
		key := fmt.Sprintf("layers[%s]", id)
		if l == nil {
			c.add(key, "is nil", nil)
			continue
		}
		if l.ID != id {
			c.add(key+".id", "does not match its key", l.ID)
		}
		if id != rootID {
			checkOwner(c, key, p, l)
		}
		checkNodes(c, key, p, l)
		checkEdges(c, key, l, o)
	}
	return c.err()
}

func checkOwner(c *collector, key string, p *domain.Project, l *domain.Layer) {
	parent, ok := p.Layers[l.ParentLayerID]
	if !ok {
		c.add(key+".parentLayerId", "names no layer", l.ParentLayerID)
		return
	}
	n, ok := parent.Nodes[l.ID]
	if !ok || !n.IsLayer() {
		c.add(key, "has no layer node in its parent", l.ParentLayerID)
	}
}

func checkNodes(c *collector, key string, p *domain.Project, l *domain.Layer) {
	seen := make(map[string]bool, len(l.NodeIDs))
	for _, id := range l.NodeIDs {
		if seen[id] {
			c.add(key+".nodeIds", "lists a node twice", id)
		}
		seen[id] = true
		if _, ok := l.Nodes[id]; !ok {
			c.add(key+".nodeIds", "lists a missing node", id)
		}
	}
	if len(seen) != len(l.Nodes) {
		c.add(key+".nodeIds", "does not cover every node", len(l.NodeIDs))
	}

	for _, n := range l.OrderedNodes() {
		nkey := fmt.Sprintf("%s.nodes[%s]", key, n.ID)
		if err := n.Validate(); err != nil {
			c.add(nkey, err.Error(), nil)
			continue
		}
		if !n.IsLayer() {
			continue
		}
		nested, ok := p.Layers[n.ID]
		if !ok {
			c.add(nkey, "layer node has no layer", nil)
			continue
		}
		if nested.ParentLayerID != l.ID {
			c.add(nkey, "layer belongs to another parent", nested.ParentLayerID)
		}
		starting, ending := graph.ComputePorts(nested)
		checkPorts(c, nkey+".startingNodes", l, n.Layer.StartingNodes, starting, func(e *domain.Edge) bool {
			return e.EndNodeID == n.ID
		}, func(e *domain.Edge) string { return e.TargetHandle.ID() })
		checkPorts(c, nkey+".endingNodes", l, n.Layer.EndingNodes, ending, func(e *domain.Edge) bool {
			return e.StartNodeID == n.ID
		}, func(e *domain.Edge) string { return e.SourceHandle.ID() })
	}
}

func checkPorts(c *collector, key string, l *domain.Layer, got, want []domain.Port, attached func(*domain.Edge) bool, handle func(*domain.Edge) string) {
	if len(got) != len(want) {
		c.add(key, fmt.Sprintf("expected %d ports", len(want)), len(got))
	} else {
		for i := range want {
			if got[i].ID != want[i].ID {
				c.add(fmt.Sprintf("%s[%d]", key, i), "expected port "+want[i].ID, got[i].ID)
			}
		}
	}

	for _, port := range got {
		pkey := fmt.Sprintf("%s[%s]", key, port.ID)
		if port.IsConnected != (len(port.ConnectionIDs) > 0) {
			c.add(pkey+".isConnected", "disagrees with connectionIds", port.IsConnected)
		}
		for _, edgeID := range port.ConnectionIDs {
			e, ok := l.Edges[edgeID]
			if !ok || !attached(e) || handle(e) != port.ID {
				c.add(pkey+".connectionIds", "names no edge through this port", edgeID)
			}
		}
	}
}

func checkEdges(c *collector, key string, l *domain.Layer, o *options) {
	for _, id := range l.EdgeIDs() {
		e := l.Edges[id]
		ekey := fmt.Sprintf("%s.edges[%s]", key, id)
		if e.ID != id {
			c.add(ekey+".id", "does not match its key", e.ID)
		}
		start, okStart := l.Nodes[e.StartNodeID]
		end, okEnd := l.Nodes[e.EndNodeID]
		if !okStart {
			c.add(ekey+".startNodeId", "names no node of the layer", e.StartNodeID)
		}
		if !okEnd {
			c.add(ekey+".endNodeId", "names no node of the layer", e.EndNodeID)
		}
		if okStart && okEnd {
			if start.Kind == domain.KindChoice && end.Kind == domain.KindChoice {
				c.add(ekey, domain.ErrChoiceToChoice.Error(), nil)
			}
			if e.SourceHandle != nil && !start.IsLayer() {
				c.add(ekey+".sourceHandle", "set on a node that is not a layer", e.SourceHandle.PortID)
			}
			if e.TargetHandle != nil && !end.IsLayer() {
				c.add(ekey+".targetHandle", "set on a node that is not a layer", e.TargetHandle.PortID)
			}
		}

		checkConditions(c, ekey, o.conditions, e.Conditions)
	}
}

// ValidateConditions checks condition params of groups against schemas.
func ValidateConditions(schemas ConditionSchemas, groups []domain.ConditionGroup) error {
	c := &collector{}
	checkConditions(c, "conditions", schemas, groups)
	return c.err()
}

func checkConditions(c *collector, key string, schemas ConditionSchemas, groups []domain.ConditionGroup) {
	if schemas == nil {
		return
	}
	for _, g := range groups {
		for _, cond := range g.Conditions {
			s, ok := schemas[cond.Type]
			if !ok {
				continue
			}
			validateParams(c, fmt.Sprintf("%s.conditions[%s].params", key, cond.ID), s, cond.Params)
		}
	}
}
