package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/goflowspace/goflow/pkg/domain"
	"github.com/goflowspace/goflow/pkg/graph"
)

// CreateNode inserts a node into a layer.
type CreateNode struct {
	base
	node    *domain.Node
	removal *graph.Removal
}

// NewCreateNode validates node and prepares its insertion into layerID.
func NewCreateNode(env *Env, layerID string, node *domain.Node) (*CreateNode, error) {
	if err := node.Validate(); err != nil {
		return nil, err
	}
	if !env.Store.Exists(layerID) && layerID != env.Store.RootID() {
		return nil, fmt.Errorf("%w: %s", domain.ErrLayerNotFound, layerID)
	}
	c := &CreateNode{node: node.Clone()}
	c.base = newBase(env, layerID, fmt.Sprintf("Create %s node", node.Kind), c)
	return c, nil
}

// NodeID returns the id of the created node.
func (c *CreateNode) NodeID() string { return c.node.ID }

func (c *CreateNode) apply(ctx context.Context) error {
	if err := c.env.Store.AddNode(ctx, c.meta.LayerID, c.node); err != nil {
		return err
	}
	c.emit(ctx, domain.OpNodeAdded, false, map[string]any{"nodeId": c.node.ID, "node": c.node.Clone()})
	return nil
}

func (c *CreateNode) revert(ctx context.Context) error {
	r, err := c.env.Store.RemoveNode(ctx, c.meta.LayerID, c.node.ID)
	if err != nil {
		return err
	}
	c.removal = r
	c.emit(ctx, domain.OpNodeAdded, true, map[string]any{"nodeId": c.node.ID})
	return nil
}

func (c *CreateNode) reapply(ctx context.Context) error {
	if c.removal == nil {
		return c.apply(ctx)
	}
	if err := c.env.Store.Restore(ctx, c.removal); err != nil {
		return err
	}
	c.emit(ctx, domain.OpNodeAdded, false, map[string]any{"nodeId": c.node.ID, "node": c.node.Clone()})
	return nil
}

// CanSafelyUndo refuses to remove a layer node while its layer is being viewed.
func (c *CreateNode) CanSafelyUndo() bool {
	return !c.node.IsLayer() || !c.viewInside(c.node.ID)
}

// DeleteNode removes one node, its edges and, for a layer node, every nested layer.
type DeleteNode struct {
	base
	node    *domain.Node
	removal *graph.Removal
}

// NewDeleteNode snapshots the node to delete.
func NewDeleteNode(env *Env, layerID, nodeID string) (*DeleteNode, error) {
	n, err := env.Store.Node(layerID, nodeID)
	if err != nil {
		return nil, err
	}
	c := &DeleteNode{node: n}
	c.base = newBase(env, layerID, fmt.Sprintf("Delete %s", n.Label()), c)
	return c, nil
}

func (c *DeleteNode) apply(ctx context.Context) error {
	r, err := c.env.Store.RemoveNode(ctx, c.meta.LayerID, c.node.ID)
	if err != nil {
		return err
	}
	c.removal = r
	c.emit(ctx, domain.OpNodeDeleted, false, removalPayload(r))
	return nil
}

func (c *DeleteNode) revert(ctx context.Context) error {
	if err := c.env.Store.Restore(ctx, c.removal); err != nil {
		return err
	}
	c.emit(ctx, domain.OpNodeDeleted, true, removalPayload(c.removal))
	return nil
}

// CanSafelyRedo refuses to delete a layer node again while its layer is being viewed.
func (c *DeleteNode) CanSafelyRedo() bool {
	return !c.node.IsLayer() || !c.viewInside(c.node.ID)
}

func removalPayload(r *graph.Removal) map[string]any {
	edgeIDs := make([]string, 0, len(r.Edges))
	for _, e := range r.Edges {
		edgeIDs = append(edgeIDs, e.ID)
	}
	layerIDs := make([]string, 0, len(r.Layers))
	for _, l := range r.Layers {
		layerIDs = append(layerIDs, l.ID)
	}
	return map[string]any{
		"nodeId":   r.Node.ID,
		"node":     r.Node.Clone(),
		"edgeIds":  edgeIDs,
		"layerIds": layerIDs,
	}
}

// DeleteNodes removes several nodes of one layer as a single step.
// It also backs Cut, which differs only in the operation it reports.
type DeleteNodes struct {
	base
	op       domain.OpType
	nodeIDs  []string
	layerIDs []string
	removals []*graph.Removal
}

// NewDeleteNodes prepares the removal of a selection.
func NewDeleteNodes(env *Env, layerID string, nodeIDs []string) (*DeleteNodes, error) {
	return newDeleteNodes(env, layerID, nodeIDs, domain.OpNodesDeleted, "Delete")
}

// NewCut prepares the removal of a selection that was put on the clipboard.
func NewCut(env *Env, layerID string, nodeIDs []string) (*DeleteNodes, error) {
	return newDeleteNodes(env, layerID, nodeIDs, domain.OpNodesCut, "Cut")
}

func newDeleteNodes(env *Env, layerID string, nodeIDs []string, op domain.OpType, verb string) (*DeleteNodes, error) {
	if len(nodeIDs) == 0 {
		return nil, domain.ErrEmptySelection
	}
	c := &DeleteNodes{op: op, nodeIDs: append([]string(nil), nodeIDs...)}
	for _, id := range nodeIDs {
		n, err := env.Store.Node(layerID, id)
		if err != nil {
			return nil, err
		}
		if n.IsLayer() {
			c.layerIDs = append(c.layerIDs, id)
		}
	}
	c.base = newBase(env, layerID, fmt.Sprintf("%s %d nodes", verb, len(nodeIDs)), c)
	return c, nil
}

// NodeIDs returns the selection.
func (c *DeleteNodes) NodeIDs() []string { return append([]string(nil), c.nodeIDs...) }

func (c *DeleteNodes) apply(ctx context.Context) error {
	c.removals = c.removals[:0]
	for _, id := range c.nodeIDs {
		r, err := c.env.Store.RemoveNode(ctx, c.meta.LayerID, id)
		if errors.Is(err, domain.ErrNodeNotFound) {
			c.env.Logger.Debug("node already gone", "layer", c.meta.LayerID, "node", id)
			continue
		}
		if err != nil {
			c.restoreAll(ctx)
			return err
		}
		c.removals = append(c.removals, r)
	}
	c.emit(ctx, c.op, false, map[string]any{"nodeIds": c.NodeIDs()})
	c.env.Refresher.RefreshLayers([]string{c.meta.LayerID}, true)
	return nil
}

func (c *DeleteNodes) revert(ctx context.Context) error {
	if err := c.restoreAll(ctx); err != nil {
		return err
	}
	c.emit(ctx, c.op, true, map[string]any{"nodeIds": c.NodeIDs()})
	c.env.Refresher.RefreshLayers([]string{c.meta.LayerID}, true)
	return nil
}

func (c *DeleteNodes) restoreAll(ctx context.Context) error {
	for i := len(c.removals) - 1; i >= 0; i-- {
		if err := c.env.Store.Restore(ctx, c.removals[i]); err != nil {
			return err
		}
	}
	c.removals = c.removals[:0]
	return nil
}

// CanSafelyRedo refuses to delete layer nodes again while one of their layers is viewed.
func (c *DeleteNodes) CanSafelyRedo() bool {
	return !c.viewInside(c.layerIDs...)
}

// MoveNode repositions a node.
type MoveNode struct {
	base
	nodeID string
	from   domain.Coordinates
	to     domain.Coordinates
}

// NewMoveNode snapshots the current position of the node.
func NewMoveNode(env *Env, layerID, nodeID string, to domain.Coordinates) (*MoveNode, error) {
	n, err := env.Store.Node(layerID, nodeID)
	if err != nil {
		return nil, err
	}
	c := &MoveNode{nodeID: nodeID, from: n.Coordinates, to: to}
	c.base = newBase(env, layerID, "Move node", c)
	return c, nil
}

func (c *MoveNode) apply(ctx context.Context) error {
	return c.moveTo(ctx, c.from, c.to, false)
}

func (c *MoveNode) revert(ctx context.Context) error {
	return c.moveTo(ctx, c.to, c.from, true)
}

func (c *MoveNode) moveTo(ctx context.Context, from, to domain.Coordinates, undo bool) error {
	if _, err := c.env.Store.MoveNode(ctx, c.meta.LayerID, c.nodeID, to); err != nil {
		return err
	}
	c.emit(ctx, domain.OpNodeMoved, undo, map[string]any{"nodeId": c.nodeID, "from": from, "to": to})
	return nil
}

// EditNodeData replaces the payload of a narrative, choice or note node.
type EditNodeData struct {
	base
	nodeID string
	old    domain.NodeData
	data   domain.NodeData
}

// NewEditNodeData snapshots the current payload of the node.
func NewEditNodeData(env *Env, layerID, nodeID string, data domain.NodeData) (*EditNodeData, error) {
	n, err := env.Store.Node(layerID, nodeID)
	if err != nil {
		return nil, err
	}
	if n.Data == nil {
		return nil, fmt.Errorf("%w: %s node %s has no editable data", domain.ErrInvalidNode, n.Kind, nodeID)
	}
	c := &EditNodeData{nodeID: nodeID, old: *n.Data, data: data}
	c.base = newBase(env, layerID, "Edit node", c)
	return c, nil
}

func (c *EditNodeData) apply(ctx context.Context) error {
	return c.set(ctx, c.data, false)
}

func (c *EditNodeData) revert(ctx context.Context) error {
	return c.set(ctx, c.old, true)
}

func (c *EditNodeData) set(ctx context.Context, data domain.NodeData, undo bool) error {
	if _, err := c.env.Store.UpdateNodeData(ctx, c.meta.LayerID, c.nodeID, data); err != nil {
		return err
	}
	c.emit(ctx, domain.OpNodeUpdated, undo, map[string]any{"nodeId": c.nodeID, "data": data})
	return nil
}
