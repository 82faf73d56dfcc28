package memory

import (
	"context"
	"sync"

	"github.com/goflowspace/goflow/pkg/domain"
)

type timelineKey struct {
	project  string
	timeline string
}

// OperationLog implements ports.OperationLog in memory.
type OperationLog struct {
	mu  sync.RWMutex
	ops map[timelineKey][]domain.Operation
}

// NewOperationLog creates an empty log.
func NewOperationLog() *OperationLog {
	return &OperationLog{ops: make(map[timelineKey][]domain.Operation)}
}

// Emit appends op to its project timeline.
func (l *OperationLog) Emit(ctx context.Context, op domain.Operation) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := timelineKey{op.ProjectID, op.TimelineID}
	l.ops[k] = append(l.ops[k], op)
	return nil
}

// Range returns a copy of the recorded operations, oldest first.
func (l *OperationLog) Range(ctx context.Context, projectID, timelineID string) ([]domain.Operation, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	src := l.ops[timelineKey{projectID, timelineID}]
	return append([]domain.Operation{}, src...), nil
}

// Len returns the number of operations recorded across all timelines.
func (l *OperationLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, ops := range l.ops {
		n += len(ops)
	}
	return n
}
