package dsl_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goflowspace/goflow"
	"github.com/goflowspace/goflow/pkg/domain"
	"github.com/goflowspace/goflow/pkg/dsl"
)

func TestBuilder_SimpleFlow(t *testing.T) {
	b := dsl.New()

	b.Add("start").
		Narrative("You wake up.").
		Title("Intro").
		Go("door")

	b.Add("door").
		Choice("Open the door").
		At(250, 0).
		When("hall", domain.Condition{ID: "c1", Type: "flag", Params: map[string]any{"name": "key"}})

	b.Add("hall").
		Narrative("A long hall.").
		At(500, 0)

	b.Add("memo").
		Note("remember the key").
		Color("#ffcc00")

	nodes := b.Nodes()
	if len(nodes) != 4 {
		t.Fatalf("Expected 4 nodes, got %d", len(nodes))
	}
	if nodes[1].Kind != domain.KindChoice || nodes[1].Coordinates.X != 250 {
		t.Errorf("Unexpected door node: %+v", nodes[1])
	}
	if nodes[0].Data.Title != "Intro" {
		t.Errorf("Expected title 'Intro', got %q", nodes[0].Data.Title)
	}

	edges := b.Edges()
	if len(edges) != 2 {
		t.Fatalf("Expected 2 edges, got %d", len(edges))
	}
	if edges[0].ID != "start->door" || len(edges[0].Conditions) != 0 {
		t.Errorf("Unexpected first edge: %+v", edges[0])
	}
	if len(edges[1].Conditions) != 1 || edges[1].Conditions[0].Operator != "and" {
		t.Errorf("Expected one 'and' group on door->hall, got %+v", edges[1].Conditions)
	}

	importer, err := b.Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	ctx := context.Background()
	ed := goflow.New()
	ids, err := ed.Import(ctx, importer)
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if len(ids) != 4 {
		t.Fatalf("Expected 4 imported nodes, got %d", len(ids))
	}

	root, err := ed.Store().Layer(domain.RootLayerID)
	if err != nil {
		t.Fatalf("Layer() failed: %v", err)
	}
	if len(root.Nodes) != 4 || len(root.Edges) != 2 {
		t.Errorf("Expected 4 nodes and 2 edges, got %d and %d", len(root.Nodes), len(root.Edges))
	}
	if _, ok := root.Nodes["start"]; ok {
		t.Error("Expected imported ids to be replaced")
	}
}

func TestBuilder_BuildReturnsNodeCopies(t *testing.T) {
	b := dsl.New()
	nb := b.Add("a").Narrative("first")
	if b.Add("a") != nb {
		t.Fatal("Expected Add to return the existing builder")
	}

	n := nb.Build()
	n.Data.Text = "changed"
	if b.Nodes()[0].Data.Text != "first" {
		t.Error("Expected Build to return a copy")
	}
}

func TestBuilder_RejectsBadLinks(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *dsl.Builder)
		want  error
	}{
		{
			name: "undeclared target",
			build: func(b *dsl.Builder) {
				b.Add("a").Go("ghost")
			},
			want: domain.ErrInvalidEdge,
		},
		{
			name: "choice to choice",
			build: func(b *dsl.Builder) {
				b.Add("a").Choice("x").Go("b")
				b.Add("b").Choice("y")
			},
			want: domain.ErrChoiceToChoice,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := dsl.New()
			tt.build(b)
			if _, err := b.Build(); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}
