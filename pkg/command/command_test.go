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

type notice struct {
	kind    string
	message string
	label   string
	path    []string
}

type fakeNotifier struct {
	notices []notice
}

func (f *fakeNotifier) ShowError(m string) {
	f.notices = append(f.notices, notice{kind: "error", message: m})
}
func (f *fakeNotifier) ShowSuccess(m string) {
	f.notices = append(f.notices, notice{kind: "success", message: m})
}
func (f *fakeNotifier) ShowErrorWithNavigation(m, label string, path []string) {
	f.notices = append(f.notices, notice{kind: "navigate", message: m, label: label, path: path})
}

type fakeRefresher struct {
	calls [][]string
}

func (f *fakeRefresher) RefreshLayers(ids []string, _ bool) {
	f.calls = append(f.calls, ids)
}

type fixture struct {
	store     *graph.Store
	env       *Env
	history   *History
	notifier  *fakeNotifier
	refresher *fakeRefresher
	ops       []domain.Operation
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{notifier: &fakeNotifier{}, refresher: &fakeRefresher{}}
	n := 0
	f.store = graph.NewStore("p", "t",
		graph.WithIDGenerator(ports.IDFunc(func() string {
			n++
			return fmt.Sprintf("gen-%d", n)
		})),
		graph.WithSink(ports.SinkFunc(func(_ context.Context, op domain.Operation) error {
			f.ops = append(f.ops, op)
			return nil
		})),
	)
	view := NewView(f.store.RootID())
	f.env = NewEnv(f.store, view)
	f.env.Refresher = f.refresher
	f.history = NewHistory(f.store, view, WithNotifier(f.notifier))
	return f
}

func (f *fixture) exec(t *testing.T, cmd Command, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NoError(t, f.history.Execute(context.Background(), cmd))
}

func (f *fixture) opTypes() []domain.OpType {
	var out []domain.OpType
	for _, op := range f.ops {
		if op.Type != domain.OpLayerPortsUpdated {
			out = append(out, op.Type)
		}
	}
	return out
}

func narrative(id string, x float64) *domain.Node {
	return domain.NewNarrative(id, domain.Coordinates{X: x}, domain.NodeData{Text: id})
}

func requireSameLayers(t *testing.T, want, got *domain.Project) {
	t.Helper()
	require.Equal(t, len(want.Layers), len(got.Layers), "layer count")
	for id, l := range want.Layers {
		require.Contains(t, got.Layers, id)
		assert.Nil(t, domain.DiffLayers(l, got.Layers[id]), "layer %s", id)
		assert.Equal(t, l, got.Layers[id], "layer %s", id)
	}
}

// seedScene builds root: a -> L(in), L: in -> out, b (isolated).
func seedScene(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.AddNode(ctx, "root", narrative("a", 0)))
	_, err := f.store.AddLayer(ctx, "root", "L", domain.Coordinates{X: 200}, "Chapter")
	require.NoError(t, err)
	require.NoError(t, f.store.AddNode(ctx, "L", narrative("in", 0)))
	require.NoError(t, f.store.AddNode(ctx, "L", narrative("out", 100)))
	require.NoError(t, f.store.AddNode(ctx, "L", narrative("b", 300)))
	_, err = f.store.Connect(ctx, "L", graph.ConnectParams{ID: "io", Source: "in", Target: "out"})
	require.NoError(t, err)
	_, err = f.store.Connect(ctx, "root", graph.ConnectParams{ID: "aL", Source: "a", Target: "L", TargetHandle: "in"})
	require.NoError(t, err)
}

func TestCommands_RoundTripAndIdempotentRedo(t *testing.T) {
	cases := []struct {
		name  string
		view  string
		build func(env *Env) (Command, error)
	}{
		{"create narrative", "root", func(env *Env) (Command, error) {
			return NewCreateNode(env, "root", narrative("new", 500))
		}},
		{"create layer node", "root", func(env *Env) (Command, error) {
			return NewCreateNode(env, "root", domain.NewLayerNode("LN", domain.Coordinates{X: 700}, "Lazy", ""))
		}},
		{"create layer", "root", func(env *Env) (Command, error) {
			return NewCreateLayer(env, "root", domain.Coordinates{X: 600}, "")
		}},
		{"create nested layer", "L", func(env *Env) (Command, error) {
			return NewCreateLayer(env, "L", domain.Coordinates{X: 600}, "Inner")
		}},
		{"delete plain node", "L", func(env *Env) (Command, error) {
			return NewDeleteNode(env, "L", "in")
		}},
		{"delete layer node", "root", func(env *Env) (Command, error) {
			return NewDeleteNode(env, "root", "L")
		}},
		{"delete selection", "L", func(env *Env) (Command, error) {
			return NewDeleteNodes(env, "L", []string{"in", "out"})
		}},
		{"cut selection", "root", func(env *Env) (Command, error) {
			return NewCut(env, "root", []string{"a", "L"})
		}},
		{"move", "L", func(env *Env) (Command, error) {
			return NewMoveNode(env, "L", "b", domain.Coordinates{X: 1, Y: 2})
		}},
		{"edit data", "L", func(env *Env) (Command, error) {
			return NewEditNodeData(env, "L", "out", domain.NodeData{Title: "End"})
		}},
		{"connect", "L", func(env *Env) (Command, error) {
			return NewConnect(env, "L", graph.ConnectParams{Source: "out", Target: "b"})
		}},
		{"connect through port", "root", func(env *Env) (Command, error) {
			return NewConnect(env, "root", graph.ConnectParams{Source: "L", Target: "a", SourceHandle: "b"})
		}},
		{"delete edge", "root", func(env *Env) (Command, error) {
			return NewDeleteEdge(env, "root", "aL")
		}},
		{"edit conditions", "L", func(env *Env) (Command, error) {
			return NewEditEdgeConditions(env, "L", "io", []domain.ConditionGroup{{ID: "g", Operator: "and"}})
		}},
		{"rename layer", "root", func(env *Env) (Command, error) {
			return NewUpdateLayerInfo(env, "L", "Renamed", "about")
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			seedScene(t, f)
			f.env.View.Navigate(tc.view)

			before := f.store.Snapshot()
			cmd, err := tc.build(f.env)
			f.exec(t, cmd, err)
			afterExec := f.store.Snapshot()

			undone, err := f.history.Undo(ctx)
			require.NoError(t, err)
			require.True(t, undone, "undo refused: %+v", f.notifier.notices)
			requireSameLayers(t, before, f.store.Snapshot())

			redone, err := f.history.Redo(ctx)
			require.NoError(t, err)
			require.True(t, redone, "redo refused: %+v", f.notifier.notices)
			requireSameLayers(t, afterExec, f.store.Snapshot())
			assert.Equal(t, StateExecuted, cmd.State())
		})
	}
}

func TestCommand_StateMachine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cmd, err := NewCreateNode(f.env, "root", narrative("n", 0))
	require.NoError(t, err)
	assert.Equal(t, StateCreated, cmd.State())

	assert.ErrorIs(t, cmd.Undo(ctx), domain.ErrInvalidTransition)
	assert.ErrorIs(t, cmd.Redo(ctx), domain.ErrInvalidTransition)

	require.NoError(t, cmd.Execute(ctx))
	assert.ErrorIs(t, cmd.Execute(ctx), domain.ErrInvalidTransition)
	assert.ErrorIs(t, cmd.Redo(ctx), domain.ErrInvalidTransition)

	require.NoError(t, cmd.Undo(ctx))
	assert.Equal(t, StateUndone, cmd.State())
	assert.ErrorIs(t, cmd.Execute(ctx), domain.ErrInvalidTransition, "never back to created")

	require.NoError(t, cmd.Redo(ctx))
	assert.Equal(t, StateExecuted, cmd.State())
}

func TestCommand_FailedExecuteKeepsState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.AddNode(ctx, "root", narrative("n", 0)))

	cmd, err := NewCreateNode(f.env, "root", narrative("n", 0))
	require.NoError(t, err)
	assert.ErrorIs(t, f.history.Execute(ctx, cmd), domain.ErrDuplicateNode)
	assert.Equal(t, StateCreated, cmd.State())
	assert.Empty(t, f.history.UndoStack())
}

func TestConstructors_Validate(t *testing.T) {
	f := newFixture(t)
	seedScene(t, f)

	_, err := NewCreateNode(f.env, "root", &domain.Node{ID: "x", Kind: "bogus"})
	assert.ErrorIs(t, err, domain.ErrInvalidNode)
	_, err = NewCreateNode(f.env, "nowhere", narrative("x", 0))
	assert.ErrorIs(t, err, domain.ErrLayerNotFound)
	_, err = NewDeleteNode(f.env, "root", "ghost")
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
	_, err = NewDeleteNodes(f.env, "root", nil)
	assert.ErrorIs(t, err, domain.ErrEmptySelection)
	_, err = NewEditNodeData(f.env, "root", "L", domain.NodeData{})
	assert.ErrorIs(t, err, domain.ErrInvalidNode)
	_, err = NewConnect(f.env, "root", graph.ConnectParams{Source: "a"})
	assert.ErrorIs(t, err, domain.ErrInvalidEdge)
	_, err = NewDeleteEdge(f.env, "root", "ghost")
	assert.ErrorIs(t, err, domain.ErrEdgeNotFound)
	_, err = NewCreateLayer(f.env, "nowhere", domain.Coordinates{}, "")
	assert.ErrorIs(t, err, domain.ErrLayerNotFound)
	_, err = NewInsertSubtree(f.env, "root", &clipboard.Fragment{SourceLayerID: "root"}, domain.OpNodesPasted)
	assert.ErrorIs(t, err, domain.ErrEmptySelection)
}

func TestConnect_ResolvesEdgeIDOnceAndReusesIt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedScene(t, f)
	f.env.View.Navigate("L")

	cmd, err := NewConnect(f.env, "L", graph.ConnectParams{Source: "out", Target: "b"})
	require.NoError(t, err)
	assert.Empty(t, cmd.EdgeID())
	f.exec(t, cmd, nil)
	id := cmd.EdgeID()
	require.NotEmpty(t, id)

	_, err = f.history.Undo(ctx)
	require.NoError(t, err)
	_, err = f.history.Redo(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, cmd.EdgeID())
	_, err = f.store.Edge("L", id)
	assert.NoError(t, err)
}

func TestCreateLayer_DefaultNameSurvivesRedo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	cmd, err := NewCreateLayer(f.env, "root", domain.Coordinates{}, "")
	f.exec(t, cmd, err)
	assert.Equal(t, "Layer 1", cmd.Name())

	_, err = f.history.Undo(ctx)
	require.NoError(t, err)
	_, err = f.history.Redo(ctx)
	require.NoError(t, err)

	l, err := f.store.Layer(cmd.LayerID())
	require.NoError(t, err)
	assert.Equal(t, "Layer 1", l.Name)
	assert.Equal(t, 1, f.store.LayerCounter())
}

func TestCommands_EmitPairedOperations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	cmd, err := NewCreateNode(f.env, "root", narrative("n", 0))
	f.exec(t, cmd, err)
	_, err = f.history.Undo(ctx)
	require.NoError(t, err)
	_, err = f.history.Redo(ctx)
	require.NoError(t, err)

	assert.Equal(t, []domain.OpType{
		domain.OpNodeAdded,
		domain.OpNodeAdded.Undo(),
		domain.OpNodeAdded,
	}, f.opTypes())
	for _, op := range f.ops {
		assert.Equal(t, "p", op.ProjectID)
		assert.Equal(t, "t", op.TimelineID)
		assert.Equal(t, "root", op.LayerID)
	}
}
