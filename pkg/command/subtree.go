package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/goflowspace/goflow/pkg/clipboard"
	"github.com/goflowspace/goflow/pkg/domain"
)

// InsertSubtree commits a cloned fragment into a layer. It backs duplicate,
// paste and import, which differ only in the operation they report.
//
// Nested layers are materialized breadth first: a layer whose parent is not
// in the repository yet goes back to the end of the queue, so parents always
// exist before their children however the fragment lists them.
type InsertSubtree struct {
	base
	op       domain.OpType
	fragment *clipboard.Fragment
}

// NewInsertSubtree validates the fragment against layerID. The fragment must
// already carry fresh ids (see clipboard.Clone).
func NewInsertSubtree(env *Env, layerID string, f *clipboard.Fragment, op domain.OpType) (*InsertSubtree, error) {
	if f.IsEmpty() {
		return nil, domain.ErrEmptySelection
	}
	if f.SourceLayerID != layerID {
		return nil, fmt.Errorf("%w: fragment targets %s, not %s", domain.ErrInvalidNode, f.SourceLayerID, layerID)
	}
	if err := clipboard.ValidateHierarchy(f); err != nil {
		return nil, err
	}
	c := &InsertSubtree{op: op, fragment: f.Clone()}
	c.base = newBase(env, layerID, describeInsert(op, len(f.Nodes)), c)
	return c, nil
}

func describeInsert(op domain.OpType, n int) string {
	verb := "Insert"
	switch op {
	case domain.OpNodesDuplicated:
		verb = "Duplicate"
	case domain.OpNodesPasted:
		verb = "Paste"
	case domain.OpNodesImported:
		verb = "Import"
	}
	return fmt.Sprintf("%s %d nodes", verb, n)
}

// NodeIDs returns the ids of the inserted top-level nodes.
func (c *InsertSubtree) NodeIDs() []string { return c.fragment.NodeIDs() }

// LayerIDs returns the ids of every inserted layer.
func (c *InsertSubtree) LayerIDs() []string { return c.fragment.LayerIDs() }

func (c *InsertSubtree) apply(ctx context.Context) error {
	store := c.env.Store
	dest := c.meta.LayerID
	if !store.Exists(dest) {
		return fmt.Errorf("%w: destination %s: %w", domain.ErrCommandSkipped, dest, domain.ErrLayerNotFound)
	}

	queue := append([]*domain.Layer(nil), c.fragment.Layers...)
	budget := len(queue) * len(queue)
	var restored []string
	for len(queue) > 0 {
		l := queue[0]
		queue = queue[1:]
		if !store.Exists(l.ParentLayerID) {
			if budget == 0 {
				c.rollback(ctx, nil, restored)
				return fmt.Errorf("%w: parent %s of layer %s never materialized", domain.ErrCycle, l.ParentLayerID, l.ID)
			}
			budget--
			queue = append(queue, l)
			continue
		}
		if err := store.RestoreLayer(l); err != nil {
			c.rollback(ctx, nil, restored)
			return err
		}
		restored = append(restored, l.ID)
	}

	var added []string
	for _, n := range c.fragment.Nodes {
		if err := store.AddNode(ctx, dest, n); err != nil {
			c.rollback(ctx, added, restored)
			return err
		}
		added = append(added, n.ID)
	}
	for _, e := range c.fragment.Edges {
		if err := store.AddEdge(ctx, dest, e); err != nil {
			c.rollback(ctx, added, restored)
			return err
		}
	}
	store.Resync(ctx, restored...)

	c.emit(ctx, c.op, false, c.payload())
	c.env.Refresher.RefreshLayers([]string{dest}, true)
	return nil
}

func (c *InsertSubtree) revert(ctx context.Context) error {
	ids := c.fragment.NodeIDs()
	for i := len(ids) - 1; i >= 0; i-- {
		_, err := c.env.Store.RemoveNode(ctx, c.meta.LayerID, ids[i])
		if err != nil && !errors.Is(err, domain.ErrNodeNotFound) {
			return err
		}
	}
	c.emit(ctx, c.op, true, c.payload())
	c.env.Refresher.RefreshLayers([]string{c.meta.LayerID}, true)
	return nil
}

// rollback undoes a partial apply. Removing an added layer node takes its
// layers with it; layers whose node was never added are dropped directly.
func (c *InsertSubtree) rollback(ctx context.Context, added, restored []string) {
	for i := len(added) - 1; i >= 0; i-- {
		if _, err := c.env.Store.RemoveNode(ctx, c.meta.LayerID, added[i]); err != nil {
			c.env.Logger.Warn("rollback: failed to remove node", "node", added[i], "error", err)
		}
	}
	for i := len(restored) - 1; i >= 0; i-- {
		if !c.env.Store.Exists(restored[i]) {
			continue
		}
		if _, err := c.env.Store.RemoveLayerTree(restored[i]); err != nil {
			c.env.Logger.Warn("rollback: failed to remove layer", "layer", restored[i], "error", err)
		}
	}
}

func (c *InsertSubtree) payload() map[string]any {
	return map[string]any{
		"nodeIds":  c.fragment.NodeIDs(),
		"edgeIds":  c.fragment.EdgeIDs(),
		"layerIds": c.fragment.LayerIDs(),
	}
}

// CanSafelyUndo refuses to remove inserted layers while one of them is viewed.
func (c *InsertSubtree) CanSafelyUndo() bool {
	var top []string
	for _, n := range c.fragment.Nodes {
		if n.IsLayer() {
			top = append(top, n.ID)
		}
	}
	return !c.viewInside(top...)
}
