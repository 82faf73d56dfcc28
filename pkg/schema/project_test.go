package schema_test

import (
	"context"
	"testing"

	"github.com/goflowspace/goflow/pkg/domain"
	"github.com/goflowspace/goflow/pkg/graph"
	"github.com/goflowspace/goflow/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validProject builds root: a -> L(in), L: in -> out.
func validProject(t *testing.T) *domain.Project {
	t.Helper()
	ctx := context.Background()
	s := graph.NewStore("p", "t")
	data := func(s string) domain.NodeData { return domain.NodeData{Text: s} }
	require.NoError(t, s.AddNode(ctx, "root", domain.NewNarrative("a", domain.Coordinates{}, data("a"))))
	_, err := s.AddLayer(ctx, "root", "L", domain.Coordinates{X: 100}, "Chapter")
	require.NoError(t, err)
	require.NoError(t, s.AddNode(ctx, "L", domain.NewNarrative("in", domain.Coordinates{}, data("in"))))
	require.NoError(t, s.AddNode(ctx, "L", domain.NewChoice("out", domain.Coordinates{X: 100}, data("out"))))
	_, err = s.Connect(ctx, "L", graph.ConnectParams{ID: "io", Source: "in", Target: "out"})
	require.NoError(t, err)
	_, err = s.Connect(ctx, "root", graph.ConnectParams{
		ID: "aL", Source: "a", Target: "L", TargetHandle: "in",
		Conditions: []domain.ConditionGroup{{ID: "g", Operator: "and", Conditions: []domain.Condition{
			{ID: "c1", Type: "variable_equals", Params: map[string]any{"variable": "gold", "value": float64(3)}},
		}}},
	})
	require.NoError(t, err)
	return s.Snapshot()
}

func TestValidateProject_AcceptsStoreSnapshots(t *testing.T) {
	assert.NoError(t, schema.ValidateProject(validProject(t)))
	assert.NoError(t, schema.ValidateProject(domain.NewProject("p", "t")))
}

func TestValidateProject_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(p *domain.Project)
		key     string
	}{
		{"nil layer", func(p *domain.Project) { p.Layers["X"] = nil }, "layers[X]"},
		{"missing root", func(p *domain.Project) { delete(p.Layers, "root") }, "rootLayerId"},
		{"orphan layer", func(p *domain.Project) {
			p.Layers["X"] = domain.NewLayer("X", "x", "root", 1)
		}, "layers[X]"},
		{"node list drift", func(p *domain.Project) {
			p.Layers["L"].NodeIDs = []string{"in"}
		}, "layers[L].nodeIds"},
		{"invalid payload", func(p *domain.Project) {
			p.Layers["L"].Nodes["in"].Data = nil
		}, "layers[L].nodes[in]"},
		{"stale ports", func(p *domain.Project) {
			p.Layers["root"].Nodes["L"].Layer.StartingNodes = nil
		}, "layers[root].nodes[L].startingNodes"},
		{"dangling connection", func(p *domain.Project) {
			p.Layers["root"].Nodes["L"].Layer.StartingNodes[0].ConnectionIDs = []string{"ghost"}
		}, "layers[root].nodes[L].startingNodes[in].connectionIds"},
		{"connected flag", func(p *domain.Project) {
			p.Layers["root"].Nodes["L"].Layer.StartingNodes[0].IsConnected = false
		}, "layers[root].nodes[L].startingNodes[in].isConnected"},
		{"missing endpoint", func(p *domain.Project) {
			p.Layers["L"].Edges["io"].EndNodeID = "nowhere"
		}, "layers[L].edges[io].endNodeId"},
		{"choice to choice", func(p *domain.Project) {
			p.Layers["L"].PutNode(domain.NewChoice("c2", domain.Coordinates{}, domain.NodeData{}))
			p.Layers["L"].Edges["cc"] = &domain.Edge{ID: "cc", StartNodeID: "out", EndNodeID: "c2"}
			p.Layers["root"].Nodes["L"].Layer.EndingNodes = []domain.Port{{ID: "c2"}}
		}, "layers[L].edges[cc]"},
		{"handle on plain node", func(p *domain.Project) {
			p.Layers["L"].Edges["io"].SourceHandle = domain.Ref("x")
		}, "layers[L].edges[io].sourceHandle"},
		{"cycle", func(p *domain.Project) {
			p.Layers["L"].ParentLayerID = "L"
		}, "layers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProject(t)
			tt.corrupt(p)

			err := schema.ValidateProject(p)
			require.Error(t, err)
			var keys []string
			for _, e := range schema.ValidationErrors(err) {
				var ve *schema.ValidationError
				require.ErrorAs(t, e, &ve)
				keys = append(keys, ve.Key)
			}
			assert.Contains(t, keys, tt.key)
		})
	}
}

func TestValidateProject_ConditionParams(t *testing.T) {
	conds, err := schema.ParseConditionSchemas(map[string]map[string]string{
		"variable_equals": {"variable": "string", "value": "int"},
	})
	require.NoError(t, err)

	p := validProject(t)
	assert.NoError(t, schema.ValidateProject(p, schema.WithConditionSchemas(conds)))

	p.Layers["root"].Edges["aL"].Conditions[0].Conditions[0].Params = map[string]any{"value": "three"}
	err = schema.ValidateProject(p, schema.WithConditionSchemas(conds))
	errs := schema.ValidationErrors(err)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "params.value")
	assert.Contains(t, errs[1].Error(), "params.variable: required")
}

func TestValidateProject_Nil(t *testing.T) {
	assert.Error(t, schema.ValidateProject(nil))
}
