package goflow_test

import (
	"context"
	"fmt"
	"log"

	"github.com/goflowspace/goflow"
	"github.com/goflowspace/goflow/pkg/domain"
	"github.com/goflowspace/goflow/pkg/graph"
)

// ExampleEditor_layers builds a layer with an inner path and shows the ports
// it exposes to the root graph.
func ExampleEditor_layers() {
	ctx := context.Background()
	ed := goflow.New()

	chapter, err := ed.AddLayer(ctx, domain.Coordinates{}, "Chapter 1")
	if err != nil {
		log.Fatal(err)
	}
	if err := ed.Navigate(chapter); err != nil {
		log.Fatal(err)
	}
	intro, _ := ed.AddNode(ctx, domain.NewNarrative("intro", domain.Coordinates{}, domain.NodeData{Text: "Intro"}))
	outro, _ := ed.AddNode(ctx, domain.NewNarrative("outro", domain.Coordinates{X: 200}, domain.NodeData{Text: "Outro"}))
	if _, err := ed.Connect(ctx, graph.ConnectParams{Source: intro, Target: outro}); err != nil {
		log.Fatal(err)
	}

	node, err := ed.Store().Node("root", chapter)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("entry:", node.Layer.StartingNodes[0].ID)
	fmt.Println("exit:", node.Layer.EndingNodes[0].ID)
	fmt.Println("undoable:", len(ed.History().UndoStack()))
	// Output:
	// entry: intro
	// exit: outro
	// undoable: 4
}
