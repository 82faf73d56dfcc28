package command

import (
	"context"
	"fmt"

	"github.com/goflowspace/goflow/pkg/domain"
	"github.com/goflowspace/goflow/pkg/graph"
)

// CreateLayer materializes a new nested layer and its layer node.
type CreateLayer struct {
	base
	layerID string
	at      domain.Coordinates
	name    string
	removal *graph.Removal
}

// NewCreateLayer reserves the id of the new layer. An empty name is filled
// with the next default "Layer {n}" name on first execution.
func NewCreateLayer(env *Env, parentLayerID string, at domain.Coordinates, name string) (*CreateLayer, error) {
	if !env.Store.Exists(parentLayerID) && parentLayerID != env.Store.RootID() {
		return nil, fmt.Errorf("%w: %s", domain.ErrLayerNotFound, parentLayerID)
	}
	id, err := env.Store.NewID()
	if err != nil {
		return nil, err
	}
	c := &CreateLayer{layerID: id, at: at, name: name}
	c.base = newBase(env, parentLayerID, "Create layer", c)
	return c, nil
}

// LayerID returns the id of the created layer (and of its layer node).
func (c *CreateLayer) LayerID() string { return c.layerID }

// Name returns the layer name, resolved after the first execution.
func (c *CreateLayer) Name() string { return c.name }

func (c *CreateLayer) apply(ctx context.Context) error {
	n, err := c.env.Store.AddLayer(ctx, c.meta.LayerID, c.layerID, c.at, c.name)
	if err != nil {
		return err
	}
	c.name = n.Layer.Name
	c.emit(ctx, domain.OpLayerAdded, false, c.payload())
	return nil
}

func (c *CreateLayer) revert(ctx context.Context) error {
	r, err := c.env.Store.RemoveNode(ctx, c.meta.LayerID, c.layerID)
	if err != nil {
		return err
	}
	c.removal = r
	c.emit(ctx, domain.OpLayerAdded, true, c.payload())
	return nil
}

func (c *CreateLayer) reapply(ctx context.Context) error {
	if err := c.env.Store.Restore(ctx, c.removal); err != nil {
		return err
	}
	c.emit(ctx, domain.OpLayerAdded, false, c.payload())
	return nil
}

func (c *CreateLayer) payload() map[string]any {
	return map[string]any{"layerId": c.layerID, "parentLayerId": c.meta.LayerID, "name": c.name}
}

// CanSafelyUndo refuses to remove the layer while it (or a layer inside it) is viewed.
func (c *CreateLayer) CanSafelyUndo() bool {
	return !c.viewInside(c.layerID)
}

// UpdateLayerInfo renames a layer.
type UpdateLayerInfo struct {
	base
	layerID           string
	oldName, oldDesc  string
	name, description string
}

// NewUpdateLayerInfo snapshots the current name and description. The command
// belongs to the layer holding the layer node, or to the layer itself for the root.
func NewUpdateLayerInfo(env *Env, layerID, name, description string) (*UpdateLayerInfo, error) {
	l, err := env.Store.Layer(layerID)
	if err != nil {
		return nil, err
	}
	owner := l.ParentLayerID
	if owner == "" {
		owner = l.ID
	}
	c := &UpdateLayerInfo{
		layerID:     layerID,
		oldName:     l.Name,
		oldDesc:     l.Description,
		name:        name,
		description: description,
	}
	c.base = newBase(env, owner, fmt.Sprintf("Rename layer %q", l.Name), c)
	return c, nil
}

func (c *UpdateLayerInfo) apply(ctx context.Context) error {
	return c.set(ctx, c.name, c.description, false)
}

func (c *UpdateLayerInfo) revert(ctx context.Context) error {
	return c.set(ctx, c.oldName, c.oldDesc, true)
}

func (c *UpdateLayerInfo) set(ctx context.Context, name, description string, undo bool) error {
	if _, _, err := c.env.Store.UpdateLayerInfo(ctx, c.layerID, name, description); err != nil {
		return err
	}
	c.emit(ctx, domain.OpLayerUpdated, undo, map[string]any{"layerId": c.layerID, "name": name, "description": description})
	return nil
}
