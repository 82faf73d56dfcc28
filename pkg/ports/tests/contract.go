package tests

import (
	"context"
	"testing"

	"github.com/goflowspace/goflow/pkg/domain"
	"github.com/goflowspace/goflow/pkg/ports"
)

// OperationLogContractTest is a reusable test suite that verifies if an adapter complies with ports.OperationLog.
func OperationLogContractTest(t *testing.T, log ports.OperationLog) {
	t.Helper()
	ctx := context.Background()

	ops := []domain.Operation{
		{Type: domain.OpNodeAdded, ProjectID: "p1", TimelineID: "t1", LayerID: "root", Payload: map[string]any{"nodeId": "n1"}},
		{Type: domain.OpEdgeAdded, ProjectID: "p1", TimelineID: "t1", LayerID: "root", Payload: map[string]any{"edgeId": "e1"}},
		{Type: domain.OpNodeAdded.Undo(), ProjectID: "p1", TimelineID: "t1", LayerID: "root", Payload: map[string]any{"nodeId": "n1"}},
		{Type: domain.OpNodeAdded, ProjectID: "p1", TimelineID: "other", LayerID: "root"},
	}

	// 1. Emit keeps order per timeline
	t.Run("Emit_Range_Order", func(t *testing.T) {
		for _, op := range ops {
			if err := log.Emit(ctx, op); err != nil {
				t.Fatalf("unexpected error emitting %s: %v", op.Type, err)
			}
		}

		got, err := log.Range(ctx, "p1", "t1")
		if err != nil {
			t.Fatalf("unexpected error reading log: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 operations for p1/t1, got %d", len(got))
		}
		want := []domain.OpType{domain.OpNodeAdded, domain.OpEdgeAdded, domain.OpNodeAdded.Undo()}
		for i, op := range got {
			if op.Type != want[i] {
				t.Errorf("op %d: got %s, want %s", i, op.Type, want[i])
			}
			if op.LayerID != "root" {
				t.Errorf("op %d: layer id lost, got %q", i, op.LayerID)
			}
		}
		if id, _ := got[0].Payload["nodeId"].(string); id != "n1" {
			t.Errorf("payload mismatch, got %v", got[0].Payload)
		}
	})

	// 2. Unknown timelines are empty, not errors
	t.Run("Range_Empty", func(t *testing.T) {
		got, err := log.Range(ctx, "p1", "missing")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no operations, got %d", len(got))
		}
	})
}
