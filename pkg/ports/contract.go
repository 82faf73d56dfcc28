package ports

import (
	"context"
	"testing"
	"time"

	"github.com/goflowspace/goflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunProjectStoreContract runs a suite of tests to verify that a ProjectStore
// implementation adheres to the defined interface contract.
func RunProjectStoreContract(t *testing.T, store ProjectStore) {
	ctx := context.Background()
	projectID := "contract-test-project-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		project := domain.NewProject(projectID, "main")
		root := project.Layers[project.RootLayerID]
		root.PutNode(domain.NewNarrative("n1", domain.Coordinates{X: 10, Y: 20}, domain.NodeData{Text: "Hello"}))
		root.PutNode(domain.NewChoice("n2", domain.Coordinates{X: 200, Y: 20}, domain.NodeData{Text: "Go on"}))
		root.Edges["e1"] = &domain.Edge{ID: "e1", StartNodeID: "n1", EndNodeID: "n2"}
		project.LayerCounter = 3

		err := store.Save(ctx, projectID, project)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, projectID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, project.RootLayerID, loaded.RootLayerID)
		assert.Equal(t, 3, loaded.LayerCounter)

		loadedRoot := loaded.Layers[loaded.RootLayerID]
		require.NotNil(t, loadedRoot)
		assert.Equal(t, []string{"n1", "n2"}, loadedRoot.NodeIDs)
		assert.Equal(t, "Hello", loadedRoot.Nodes["n1"].Data.Text)
		assert.Equal(t, domain.KindChoice, loadedRoot.Nodes["n2"].Kind)
		assert.Equal(t, "n2", loadedRoot.Edges["e1"].EndNodeID)
	})

	t.Run("Load returns an isolated copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, projectID)
		require.NoError(t, err)
		loaded.Layers[loaded.RootLayerID].Name = "mutated"

		again, err := store.Load(ctx, projectID)
		require.NoError(t, err)
		assert.NotEqual(t, "mutated", again.Layers[again.RootLayerID].Name)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+projectID)
		assert.ErrorIs(t, err, domain.ErrProjectNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, projectID, domain.NewProject(projectID, "main"))
		require.NoError(t, err)

		err = store.Delete(ctx, projectID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, projectID)
		assert.ErrorIs(t, err, domain.ErrProjectNotFound, "Load after Delete should return ErrProjectNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := projectID + "-1"
		id2 := projectID + "-2"
		_ = store.Save(ctx, id1, domain.NewProject(id1, "main"))
		_ = store.Save(ctx, id2, domain.NewProject(id2, "main"))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		projects, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, projects, id1)
		assert.Contains(t, projects, id2)
	})
}
