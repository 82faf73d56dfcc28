package ports

import (
	"context"

	"github.com/goflowspace/goflow/pkg/domain"
)

// OperationSink receives change records after the in-memory state is consistent.
// Durable storage and replication are the sink's responsibility.
type OperationSink interface {
	Emit(ctx context.Context, op domain.Operation) error
}

// OperationLog is a sink that can replay what it received.
type OperationLog interface {
	OperationSink

	// Range returns the operations recorded for a project timeline, oldest first.
	Range(ctx context.Context, projectID, timelineID string) ([]domain.Operation, error)
}

// SinkFunc adapts a function to OperationSink.
type SinkFunc func(ctx context.Context, op domain.Operation) error

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, op domain.Operation) error {
	return f(ctx, op)
}

// NopSink discards every operation.
type NopSink struct{}

// Emit implements OperationSink.
func (NopSink) Emit(context.Context, domain.Operation) error { return nil }

// Tee forwards every operation to each sink in order and returns the first
// error. Later sinks still receive the operation when an earlier one fails.
func Tee(sinks ...OperationSink) OperationSink {
	return SinkFunc(func(ctx context.Context, op domain.Operation) error {
		var first error
		for _, s := range sinks {
			if err := s.Emit(ctx, op); err != nil && first == nil {
				first = err
			}
		}
		return first
	})
}
