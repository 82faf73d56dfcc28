package command

import (
	"context"
	"fmt"
	"testing"

	"github.com/goflowspace/goflow/pkg/clipboard"
	"github.com/goflowspace/goflow/pkg/domain"
	"github.com/goflowspace/goflow/pkg/graph"
	"github.com/goflowspace/goflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_BoundedAt100(t *testing.T) {
	f := newFixture(t)

	var first Command
	for i := 0; i < 101; i++ {
		cmd, err := NewCreateNode(f.env, "root", narrative(fmt.Sprintf("n%d", i), float64(i)))
		f.exec(t, cmd, err)
		if i == 0 {
			first = cmd
		}
	}

	stack := f.history.UndoStack()
	require.Len(t, stack, 100)
	assert.NotContains(t, stack, first, "oldest command is evicted")
	assert.Equal(t, "n1", stack[0].(*CreateNode).NodeID())
}

func TestHistory_CustomCapacity(t *testing.T) {
	f := newFixture(t)
	f.history = NewHistory(f.store, f.env.View, WithCapacity(2))
	for i := 0; i < 5; i++ {
		cmd, err := NewCreateNode(f.env, "root", narrative(fmt.Sprintf("n%d", i), 0))
		f.exec(t, cmd, err)
	}
	assert.Len(t, f.history.UndoStack(), 2)
}

func TestHistory_NewCommandInvalidatesRedo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	cmd, err := NewCreateNode(f.env, "root", narrative("a", 0))
	f.exec(t, cmd, err)
	_, err = f.history.Undo(ctx)
	require.NoError(t, err)
	require.Len(t, f.history.RedoStack(), 1)

	cmd2, err := NewCreateNode(f.env, "root", narrative("b", 0))
	f.exec(t, cmd2, err)
	assert.Empty(t, f.history.RedoStack())
	assert.False(t, f.history.CanRedo())

	ok, err := f.history.Redo(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHistory_ViewAffinityRefusesOtherLayer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedScene(t, f)

	f.env.View.Navigate("L")
	cmd, err := NewMoveNode(f.env, "L", "b", domain.Coordinates{X: 9})
	f.exec(t, cmd, err)

	var refusals []*domain.RefusalEvent
	f.history.hooks.OnCommandRefused = func(_ context.Context, ev *domain.RefusalEvent) { refusals = append(refusals, ev) }

	f.env.View.Navigate("root")
	before := f.store.Snapshot()
	assert.False(t, f.history.CanUndo())
	ok, err := f.history.Undo(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	requireSameLayers(t, before, f.store.Snapshot())
	assert.Len(t, f.history.UndoStack(), 1, "a refused command stays put")
	require.Len(t, f.notifier.notices, 1)
	assert.Equal(t, "navigate", f.notifier.notices[0].kind)
	assert.Equal(t, []string{"root", "L"}, f.notifier.notices[0].path)
	require.Len(t, refusals, 1)
	assert.Equal(t, domain.RefusedWrongLayer, refusals[0].Reason)
	assert.Equal(t, "undo", refusals[0].Action)

	f.env.View.Navigate("L")
	ok, err = f.history.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHistory_MissingViewFallsBackToRoot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	cmd, err := NewCreateNode(f.env, "root", narrative("a", 0))
	f.exec(t, cmd, err)

	f.env.View.Navigate("vanished")
	assert.True(t, f.history.CanUndo())
	assert.False(t, f.history.CanRedo())
	assert.Equal(t, "vanished", f.env.View.Current(), "queries leave the view alone")

	ok, err := f.history.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "root", f.env.View.Current())
}

// guarded is a command whose structural gate is controlled by the test.
type guarded struct {
	meta  Metadata
	safe  bool
	undos int
}

func (g *guarded) Execute(context.Context) error { return nil }
func (g *guarded) Undo(context.Context) error    { g.undos++; return nil }
func (g *guarded) Redo(context.Context) error    { return nil }
func (g *guarded) Metadata() Metadata            { return g.meta }
func (g *guarded) State() State                  { return StateExecuted }
func (g *guarded) CanSafelyUndo() bool           { return g.safe }

func dupIDs() ports.IDGenerator {
	n := 0
	return ports.IDFunc(func() string {
		n++
		return fmt.Sprintf("dup-%d", n)
	})
}

func TestHistory_StructuralSafetyGate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var reasons []domain.RefusalReason
	f.history.hooks.OnCommandRefused = func(_ context.Context, ev *domain.RefusalEvent) { reasons = append(reasons, ev.Reason) }

	g := &guarded{meta: Metadata{LayerID: "root", Description: "guarded"}}
	require.NoError(t, f.history.Execute(ctx, g))

	ok, err := f.history.Undo(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, g.undos)
	assert.Equal(t, []domain.RefusalReason{domain.RefusedUnsafe}, reasons)
	require.Len(t, f.notifier.notices, 1)
	assert.Equal(t, "error", f.notifier.notices[0].kind)

	g.safe = true
	ok, err = f.history.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, g.undos)
}

func TestCreateLayer_UnsafeToUndoFromInside(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	create, err := NewCreateLayer(f.env, "root", domain.Coordinates{}, "")
	f.exec(t, create, err)

	f.env.View.Navigate(create.LayerID())
	assert.False(t, create.CanSafelyUndo())
	ok, err := f.history.Undo(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, f.store.Exists(create.LayerID()))

	f.env.View.Navigate("root")
	assert.True(t, create.CanSafelyUndo())
	ok, err = f.history.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, f.store.Exists(create.LayerID()))
}

func TestDeleteNode_UnsafeToRedoFromInside(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedScene(t, f)

	del, err := NewDeleteNode(f.env, "root", "L")
	f.exec(t, del, err)
	ok, err := f.history.Undo(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	f.env.View.Navigate("L")
	assert.False(t, del.CanSafelyRedo())
	f.env.View.Navigate("root")
	assert.True(t, del.CanSafelyRedo())

	ok, err = f.history.Redo(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, f.store.Exists("L"))
}

func TestHistory_FailedUndoDropsCommand(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedScene(t, f)

	cmd, err := NewMoveNode(f.env, "root", "a", domain.Coordinates{X: 5})
	f.exec(t, cmd, err)
	_, err = f.store.RemoveNode(ctx, "root", "a")
	require.NoError(t, err)

	ok, err := f.history.Undo(ctx)
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Empty(t, f.history.UndoStack())
	assert.Empty(t, f.history.RedoStack())
}

func TestHistory_EmptyStacks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var reasons []domain.RefusalReason
	f.history.hooks.OnCommandRefused = func(_ context.Context, ev *domain.RefusalEvent) { reasons = append(reasons, ev.Reason) }

	ok, err := f.history.Undo(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = f.history.Redo(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, []domain.RefusalReason{domain.RefusedEmpty, domain.RefusedEmpty}, reasons)
	assert.Empty(t, f.notifier.notices, "nothing to surface for an empty stack")
}

func TestHistory_HooksAndClear(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	var seen []domain.EventType
	record := func(_ context.Context, ev *domain.CommandEvent) { seen = append(seen, ev.Type) }
	f.history = NewHistory(f.store, f.env.View, WithHooks(domain.LifecycleHooks{
		OnCommandExecuted: record,
		OnCommandUndone:   record,
		OnCommandRedone:   record,
	}))

	cmd, err := NewCreateNode(f.env, "root", narrative("a", 0))
	f.exec(t, cmd, err)
	_, _ = f.history.Undo(ctx)
	_, _ = f.history.Redo(ctx)

	assert.Equal(t, []domain.EventType{domain.EventCommandExecuted, domain.EventCommandUndone, domain.EventCommandRedone}, seen)

	f.history.Clear()
	assert.Empty(t, f.history.UndoStack())
	assert.Empty(t, f.history.RedoStack())
}

func TestInsertSubtree_DuplicateScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.AddNode(ctx, "root", narrative("n1", 0)))

	create, err := NewCreateNode(f.env, "root", domain.NewChoice("n2", domain.Coordinates{X: 100}, domain.NodeData{Text: "pick"}))
	f.exec(t, create, err)
	conn, err := NewConnect(f.env, "root", graph.ConnectParams{Source: "n1", Target: "n2"})
	f.exec(t, conn, err)

	frag, err := clipboard.Capture(f.store, "root", []string{"n1", "n2"})
	require.NoError(t, err)
	clone, idMap, err := clipboard.Clone(frag, clipboard.Target{LayerID: "root"}, clipboard.ModeDuplicate, dupIDs())
	require.NoError(t, err)
	dup, err := NewInsertSubtree(f.env, "root", clone, domain.OpNodesDuplicated)
	f.exec(t, dup, err)

	root, err := f.store.Layer("root")
	require.NoError(t, err)
	assert.Len(t, root.NodeIDs, 4)
	assert.Len(t, root.Edges, 2)
	e, err := f.store.Edge("root", idMap[conn.EdgeID()])
	require.NoError(t, err)
	assert.Equal(t, idMap["n1"], e.StartNodeID)
	assert.Equal(t, idMap["n2"], e.EndNodeID)
	for _, id := range dup.NodeIDs() {
		assert.NotContains(t, []string{"n1", "n2"}, id)
	}
	assert.Contains(t, f.opTypes(), domain.OpNodesDuplicated)
	assert.NotEmpty(t, f.refresher.calls)

	_, err = f.history.Undo(ctx)
	require.NoError(t, err)
	root, err = f.store.Layer("root")
	require.NoError(t, err)
	assert.Equal(t, []string{"n1", "n2"}, root.NodeIDs)
}

func TestInsertSubtree_MaterializesChildrenListedFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedScene(t, f)
	require.NoError(t, f.store.AddNode(ctx, "L", domain.NewLayerNode("M", domain.Coordinates{X: 900}, "Deep", "")))
	require.NoError(t, f.store.AddNode(ctx, "M", narrative("m1", 0)))

	frag, err := clipboard.Capture(f.store, "root", []string{"L"})
	require.NoError(t, err)
	clone, idMap, err := clipboard.Clone(frag, clipboard.Target{LayerID: "root"}, clipboard.ModeCopy, dupIDs())
	require.NoError(t, err)
	// Reverse so the deepest layer comes first and must wait for its parent.
	for i, j := 0, len(clone.Layers)-1; i < j; i, j = i+1, j-1 {
		clone.Layers[i], clone.Layers[j] = clone.Layers[j], clone.Layers[i]
	}

	cmd, err := NewInsertSubtree(f.env, "root", clone, domain.OpNodesPasted)
	f.exec(t, cmd, err)

	newL, newM := idMap["L"], idMap["M"]
	m, err := f.store.Layer(newM)
	require.NoError(t, err)
	assert.Equal(t, newL, m.ParentLayerID)
	assert.Equal(t, 2, m.Depth)
	assert.Equal(t, "Deep copy", m.Name)
	require.Len(t, m.NodeIDs, 1)
	assert.Equal(t, idMap["m1"], m.NodeIDs[0])

	node, err := f.store.Node(newL, newM)
	require.NoError(t, err)
	require.Len(t, node.Layer.StartingNodes, 1)
	assert.Equal(t, idMap["m1"], node.Layer.StartingNodes[0].ID)

	ok, err := f.history.Undo(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, f.store.Exists(newL))
	assert.False(t, f.store.Exists(newM))
}

func TestInsertSubtree_SkippedWhenDestinationVanished(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedScene(t, f)

	frag, err := clipboard.Capture(f.store, "L", []string{"b"})
	require.NoError(t, err)
	clone, _, err := clipboard.Clone(frag, clipboard.Target{LayerID: "L", Depth: 1}, clipboard.ModeCopy, dupIDs())
	require.NoError(t, err)
	cmd, err := NewInsertSubtree(f.env, "L", clone, domain.OpNodesPasted)
	require.NoError(t, err)

	_, err = f.store.RemoveNode(ctx, "root", "L")
	require.NoError(t, err)

	err = f.history.Execute(ctx, cmd)
	assert.ErrorIs(t, err, domain.ErrCommandSkipped)
	assert.Empty(t, f.history.UndoStack())
}
