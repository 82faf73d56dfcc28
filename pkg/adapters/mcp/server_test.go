package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/goflowspace/goflow"
	"github.com/goflowspace/goflow/pkg/adapters/memory"
	"github.com/goflowspace/goflow/pkg/domain"
	"github.com/goflowspace/goflow/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *session.Manager) {
	t.Helper()
	notifiers := memory.NewNotifiers()
	mgr := session.NewManager(memory.NewStore(),
		session.WithProjectOptions(func(projectID string) []goflow.Option {
			return []goflow.Option{goflow.WithNotifier(notifiers.For(projectID))}
		}),
	)
	return NewServer(mgr, notifiers), mgr
}

func call(t *testing.T, s *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	tool := s.mcpServer.GetTool(name)
	require.NotNil(t, tool, "tool %s not registered", name)
	res, err := tool.Handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func result(t *testing.T, res *mcp.CallToolResult) Result {
	t.Helper()
	require.False(t, res.IsError, "unexpected tool error: %v", res.Content)
	out, ok := res.StructuredContent.(Result)
	require.True(t, ok, "unexpected structured content %T", res.StructuredContent)
	return out
}

func TestServer_EditingTools(t *testing.T) {
	s, mgr := newTestServer(t)
	ctx := context.Background()

	a := result(t, call(t, s, "add_node", map[string]any{
		"project_id": "p1", "kind": "narrative", "text": "start",
	}))
	require.Len(t, a.IDs, 1)
	assert.True(t, a.CanUndo)

	b := result(t, call(t, s, "add_node", map[string]any{
		"project_id": "p1", "kind": "choice", "text": "go", "x": 200.0,
	}))
	edge := result(t, call(t, s, "connect", map[string]any{
		"project_id": "p1", "source": a.IDs[0], "target": b.IDs[0],
	}))
	require.Len(t, edge.IDs, 1)

	dup := result(t, call(t, s, "duplicate_nodes", map[string]any{
		"project_id": "p1", "ids": []any{a.IDs[0], b.IDs[0]},
	}))
	assert.Len(t, dup.IDs, 2)

	p, err := mgr.Load(ctx, "p1")
	require.NoError(t, err)
	root := p.Layers[domain.RootLayerID]
	require.NotNil(t, root)
	assert.Len(t, root.Nodes, 4)
	assert.Len(t, root.Edges, 2)

	undo := result(t, call(t, s, "undo", map[string]any{"project_id": "p1"}))
	assert.True(t, undo.Applied)
	assert.True(t, undo.CanRedo)

	redo := result(t, call(t, s, "redo", map[string]any{"project_id": "p1"}))
	assert.True(t, redo.Applied)

	del := result(t, call(t, s, "delete_nodes", map[string]any{
		"project_id": "p1", "ids": []any{dup.IDs[0], dup.IDs[1]},
	}))
	assert.True(t, del.Applied)
}

func TestServer_UndoFromWrongLayer(t *testing.T) {
	s, _ := newTestServer(t)

	layer := result(t, call(t, s, "add_layer", map[string]any{"project_id": "p1", "name": "Chapter"}))
	require.Len(t, layer.IDs, 1)
	result(t, call(t, s, "add_node", map[string]any{
		"project_id": "p1", "layer_id": layer.IDs[0], "kind": "note", "text": "memo",
	}))

	undo := result(t, call(t, s, "undo", map[string]any{"project_id": "p1"}))
	assert.False(t, undo.Applied)
	require.Len(t, undo.Notices, 1)
	assert.Equal(t, memory.NoticeNavigation, undo.Notices[0].Kind)
	assert.Equal(t, []string{domain.RootLayerID, layer.IDs[0]}, undo.Notices[0].Path)
}

func TestServer_ToolErrors(t *testing.T) {
	s, _ := newTestServer(t)

	res := call(t, s, "add_node", map[string]any{"project_id": "p1", "kind": "layer"})
	assert.True(t, res.IsError)

	a := result(t, call(t, s, "add_node", map[string]any{"project_id": "p1", "kind": "choice"}))
	b := result(t, call(t, s, "add_node", map[string]any{"project_id": "p1", "kind": "choice", "x": 10.0}))
	res = call(t, s, "connect", map[string]any{"project_id": "p1", "source": a.IDs[0], "target": b.IDs[0]})
	assert.True(t, res.IsError)

	res = call(t, s, "get_layer", map[string]any{"project_id": "p1", "layer_id": "missing"})
	assert.True(t, res.IsError)
}

func TestServer_ReadTools(t *testing.T) {
	s, _ := newTestServer(t)
	result(t, call(t, s, "add_node", map[string]any{"project_id": "p1", "kind": "narrative", "text": "hi"}))

	res := call(t, s, "get_layer", map[string]any{"project_id": "p1"})
	require.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	var layer domain.Layer
	require.NoError(t, json.Unmarshal([]byte(text.Text), &layer))
	assert.Equal(t, domain.RootLayerID, layer.ID)
	assert.Len(t, layer.Nodes, 1)

	res = call(t, s, "list_projects", nil)
	require.False(t, res.IsError)
	text, ok = res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.JSONEq(t, `{"projects":["p1"]}`, text.Text)
}
