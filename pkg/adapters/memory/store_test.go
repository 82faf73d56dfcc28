package memory_test

import (
	"context"
	"testing"

	"github.com/goflowspace/goflow/pkg/adapters/memory"
	"github.com/goflowspace/goflow/pkg/domain"
	"github.com/goflowspace/goflow/pkg/ports"
	contract "github.com/goflowspace/goflow/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunProjectStoreContract(t, store)
}

func TestMemoryOperationLog_Contract(t *testing.T) {
	log := memory.NewOperationLog()
	contract.OperationLogContractTest(t, log)
	assert.Equal(t, 4, log.Len())
}

func TestNotifier_Drain(t *testing.T) {
	n := memory.NewNotifier()
	n.ShowError("boom")
	path := []string{"root", "L"}
	n.ShowErrorWithNavigation("elsewhere", "Go to layer", path)
	path[1] = "mutated"

	got := n.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, memory.NoticeError, got[0].Kind)
	assert.Equal(t, memory.NoticeNavigation, got[1].Kind)
	assert.Equal(t, []string{"root", "L"}, got[1].Path)
	assert.Empty(t, n.Drain())
}

func TestImporter(t *testing.T) {
	ctx := context.Background()

	imp, err := memory.NewFromNodes(
		[]*domain.Node{
			domain.NewNarrative("a", domain.Coordinates{}, domain.NodeData{Text: "hi"}),
			domain.NewChoice("b", domain.Coordinates{X: 50}, domain.NodeData{Text: "go"}),
		},
		[]*domain.Edge{{StartNodeID: "a", EndNodeID: "b"}},
	)
	require.NoError(t, err)

	got, err := imp.Import(ctx)
	require.NoError(t, err)
	require.Len(t, got.Nodes, 2)
	assert.Equal(t, domain.KindChoice, got.Nodes[1].Kind)
	assert.Equal(t, "go", got.Nodes[1].Data.Text)
	require.Len(t, got.Edges, 1)

	_, err = memory.NewImporter([]byte(`{"nodes":[{"id":"a","type":"narrative"}],"edges":[{"startNodeId":"a","endNodeId":"zzz"}]}`)).Import(ctx)
	assert.ErrorIs(t, err, domain.ErrInvalidEdge)

	_, err = memory.NewImporter([]byte(`{"nodes":[{"id":"l","type":"layer","layer":{"name":"x"}}]}`)).Import(ctx)
	assert.ErrorIs(t, err, domain.ErrInvalidNode)

	_, err = memory.NewImporter([]byte(`not json`)).Import(ctx)
	assert.Error(t, err)
}
