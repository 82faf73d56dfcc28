package domain

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func sampleLayer() *Layer {
	l := NewLayer("L", "Layer 1", "root", 1)
	l.PutNode(NewNarrative("a", Coordinates{X: 0, Y: 0}, NodeData{Text: "hello"}))
	l.PutNode(NewChoice("b", Coordinates{X: 100, Y: 0}, NodeData{Text: "go"}))
	l.Edges["e1"] = &Edge{ID: "e1", StartNodeID: "a", EndNodeID: "b"}
	return l
}

func TestDiffLayers(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(l *Layer)
		want   *LayerDiff // nil means no diff expected
	}{
		{
			name:   "No Changes",
			mutate: func(l *Layer) {},
			want:   nil,
		},
		{
			name: "Node Added",
			mutate: func(l *Layer) {
				l.PutNode(NewNote("c", Coordinates{}, NodeData{Text: "todo"}))
			},
			want: &LayerDiff{LayerID: "L", AddedNodes: []string{"c"}},
		},
		{
			name: "Node Moved",
			mutate: func(l *Layer) {
				l.Nodes["a"].Coordinates = Coordinates{X: 5, Y: 5}
			},
			want: &LayerDiff{LayerID: "L", MovedNodes: []string{"a"}},
		},
		{
			name: "Node Text Changed",
			mutate: func(l *Layer) {
				l.Nodes["b"].Data.Text = "stay"
			},
			want: &LayerDiff{LayerID: "L", ChangedNodes: []string{"b"}},
		},
		{
			name: "Node And Edge Removed",
			mutate: func(l *Layer) {
				l.DeleteNode("b")
				delete(l.Edges, "e1")
			},
			want: &LayerDiff{LayerID: "L", RemovedNodes: []string{"b"}, RemovedEdges: []string{"e1"}},
		},
		{
			name: "Renamed",
			mutate: func(l *Layer) {
				l.Name = "Chapter"
			},
			want: &LayerDiff{LayerID: "L", Renamed: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			old := sampleLayer()
			updated := old.Clone()
			tt.mutate(updated)

			got := DiffLayers(old, updated)
			if tt.want == nil {
				if got != nil {
					t.Errorf("DiffLayers() = %+v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatalf("DiffLayers() = nil, want %+v", tt.want)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DiffLayers() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDiffLayers_InitialLoad(t *testing.T) {
	l := sampleLayer()
	got := DiffLayers(nil, l)
	if got == nil {
		t.Fatal("expected diff for initial load")
	}
	if !reflect.DeepEqual(got.AddedNodes, []string{"a", "b"}) {
		t.Errorf("AddedNodes = %v", got.AddedNodes)
	}
	if !reflect.DeepEqual(got.AddedEdges, []string{"e1"}) {
		t.Errorf("AddedEdges = %v", got.AddedEdges)
	}
}

func TestDiffJSONSerialization(t *testing.T) {
	old := sampleLayer()
	updated := old.Clone()
	updated.Nodes["a"].Coordinates.X = 42

	diff := DiffLayers(old, updated)
	if diff == nil {
		t.Fatal("Expected diff, got nil")
	}
	bytes, _ := json.Marshal(diff)
	if strings.Contains(string(bytes), `"added_nodes"`) {
		t.Errorf("JSON should omit empty lists, got: %s", string(bytes))
	}
	if !strings.Contains(string(bytes), `"moved_nodes":["a"]`) {
		t.Errorf("JSON should list moved node, got: %s", string(bytes))
	}
}
