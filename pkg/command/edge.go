package command

import (
	"context"
	"fmt"

	"github.com/goflowspace/goflow/pkg/domain"
	"github.com/goflowspace/goflow/pkg/graph"
)

// Connect links two nodes. The edge id is resolved on first execution and
// reused on redo.
type Connect struct {
	base
	params graph.ConnectParams
	edgeID string
}

// NewConnect prepares a connection inside layerID.
func NewConnect(env *Env, layerID string, params graph.ConnectParams) (*Connect, error) {
	if params.Source == "" || params.Target == "" {
		return nil, fmt.Errorf("%w: both endpoints are required", domain.ErrInvalidEdge)
	}
	c := &Connect{params: params, edgeID: params.ID}
	c.params.Conditions = domain.CloneConditions(params.Conditions)
	c.base = newBase(env, layerID, "Connect nodes", c)
	return c, nil
}

// EdgeID returns the id of the created edge, empty before the first execution.
func (c *Connect) EdgeID() string { return c.edgeID }

func (c *Connect) apply(ctx context.Context) error {
	p := c.params
	p.ID = c.edgeID
	id, err := c.env.Store.Connect(ctx, c.meta.LayerID, p)
	if err != nil {
		return err
	}
	c.edgeID = id
	c.emit(ctx, domain.OpEdgeAdded, false, map[string]any{
		"edgeId":       id,
		"startNodeId":  p.Source,
		"endNodeId":    p.Target,
		"sourceHandle": p.SourceHandle,
		"targetHandle": p.TargetHandle,
	})
	return nil
}

func (c *Connect) revert(ctx context.Context) error {
	if _, err := c.env.Store.RemoveEdge(ctx, c.meta.LayerID, c.edgeID); err != nil {
		return err
	}
	c.emit(ctx, domain.OpEdgeAdded, true, map[string]any{"edgeId": c.edgeID})
	return nil
}

// DeleteEdge removes an edge.
type DeleteEdge struct {
	base
	edge *domain.Edge
}

// NewDeleteEdge snapshots the edge to delete.
func NewDeleteEdge(env *Env, layerID, edgeID string) (*DeleteEdge, error) {
	e, err := env.Store.Edge(layerID, edgeID)
	if err != nil {
		return nil, err
	}
	c := &DeleteEdge{edge: e}
	c.base = newBase(env, layerID, "Delete connection", c)
	return c, nil
}

func (c *DeleteEdge) apply(ctx context.Context) error {
	if _, err := c.env.Store.RemoveEdge(ctx, c.meta.LayerID, c.edge.ID); err != nil {
		return err
	}
	c.emit(ctx, domain.OpEdgeDeleted, false, map[string]any{"edgeId": c.edge.ID, "edge": c.edge.Clone()})
	return nil
}

func (c *DeleteEdge) revert(ctx context.Context) error {
	if err := c.env.Store.AddEdge(ctx, c.meta.LayerID, c.edge); err != nil {
		return err
	}
	c.emit(ctx, domain.OpEdgeDeleted, true, map[string]any{"edgeId": c.edge.ID, "edge": c.edge.Clone()})
	return nil
}

// EditEdgeConditions replaces the condition groups of an edge.
type EditEdgeConditions struct {
	base
	edgeID string
	old    []domain.ConditionGroup
	groups []domain.ConditionGroup
}

// NewEditEdgeConditions snapshots the current conditions of the edge.
func NewEditEdgeConditions(env *Env, layerID, edgeID string, groups []domain.ConditionGroup) (*EditEdgeConditions, error) {
	e, err := env.Store.Edge(layerID, edgeID)
	if err != nil {
		return nil, err
	}
	c := &EditEdgeConditions{edgeID: edgeID, old: e.Conditions, groups: domain.CloneConditions(groups)}
	c.base = newBase(env, layerID, "Edit conditions", c)
	return c, nil
}

func (c *EditEdgeConditions) apply(ctx context.Context) error {
	return c.set(ctx, c.groups, false)
}

func (c *EditEdgeConditions) revert(ctx context.Context) error {
	return c.set(ctx, c.old, true)
}

func (c *EditEdgeConditions) set(ctx context.Context, groups []domain.ConditionGroup, undo bool) error {
	if _, err := c.env.Store.UpdateEdgeConditions(ctx, c.meta.LayerID, c.edgeID, groups); err != nil {
		return err
	}
	c.emit(ctx, domain.OpEdgeUpdated, undo, map[string]any{"edgeId": c.edgeID, "conditions": domain.CloneConditions(groups)})
	return nil
}
