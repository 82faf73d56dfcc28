package validator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/goflowspace/goflow/pkg/adapters/memory"
)

func TestValidateFlow(t *testing.T) {
	ctx := context.Background()

	// Scenario A: valid flow, start -> a -> b
	valid := memory.NewImporter([]byte(`{
		"nodes": [
			{"id": "start", "type": "narrative", "data": {"text": "s"}},
			{"id": "a", "type": "choice", "data": {"text": "a"}},
			{"id": "b", "type": "narrative", "data": {"text": "b"}}
		],
		"edges": [
			{"id": "e1", "startNodeId": "start", "endNodeId": "a"},
			{"id": "e2", "startNodeId": "a", "endNodeId": "b"}
		]
	}`))

	report, err := ValidateFlow(ctx, valid)
	if err != nil {
		t.Fatalf("Scenario A (Valid) failed: %v", err)
	}
	if report.Nodes != 3 || report.Edges != 2 {
		t.Errorf("Expected 3 nodes and 2 edges, got %d and %d", report.Nodes, report.Edges)
	}
	if len(report.Starting) != 1 || report.Starting[0] != "start" {
		t.Errorf("Expected starting [start], got %v", report.Starting)
	}
	if len(report.Ending) != 1 || report.Ending[0] != "b" {
		t.Errorf("Expected ending [b], got %v", report.Ending)
	}

	// Scenario B: choice to choice, duplicate edge, and an entry-less cycle
	broken := memory.NewImporter([]byte(`{
		"nodes": [
			{"id": "c1", "type": "choice", "data": {}},
			{"id": "c2", "type": "choice", "data": {}},
			{"id": "x", "type": "narrative", "data": {}},
			{"id": "y", "type": "narrative", "data": {}}
		],
		"edges": [
			{"id": "e1", "startNodeId": "c1", "endNodeId": "c2"},
			{"id": "e2", "startNodeId": "c1", "endNodeId": "c2"},
			{"id": "e3", "startNodeId": "x", "endNodeId": "y"},
			{"id": "e4", "startNodeId": "y", "endNodeId": "x"}
		]
	}`))

	report, err = ValidateFlow(ctx, broken)
	if !errors.Is(err, ErrInvalidFlow) {
		t.Fatalf("Scenario B (Broken) should have failed with ErrInvalidFlow, got %v", err)
	}
	for _, want := range []string{
		"choice c1 cannot lead to choice c2",
		"edge e2: duplicates",
		"node x: unreachable",
		"node y: unreachable",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected %q in error, got: %v", want, err)
		}
	}
	if report == nil || len(report.Problems) != 5 {
		t.Errorf("Expected 5 problems, got %+v", report)
	}

	// Scenario C: the source itself cannot be read
	if _, err := ValidateFlow(ctx, memory.NewImporter([]byte(`{`))); err == nil {
		t.Error("Scenario C (Unreadable) should have failed, but got nil")
	}
}
