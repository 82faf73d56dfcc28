package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/goflowspace/goflow/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// OperationLog implements ports.OperationLog with one Redis list per
// project timeline. Operations are appended with RPUSH, so LRANGE replays
// them in emission order.
type OperationLog struct {
	client *backend.Client
	prefix string
	maxLen int64
}

// LogOption configures an OperationLog.
type LogOption func(*OperationLog)

// WithMaxLen caps each timeline list, dropping the oldest entries.
func WithMaxLen(n int64) LogOption {
	return func(l *OperationLog) {
		l.maxLen = n
	}
}

// NewOperationLog creates a log sharing the client and prefix of a store.
func NewOperationLog(client *backend.Client, prefix string, opts ...LogOption) *OperationLog {
	l := &OperationLog{client: client, prefix: prefix}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *OperationLog) key(projectID, timelineID string) string {
	return l.prefix + "oplog:" + projectID + ":" + timelineID
}

// Emit appends op to its timeline.
func (l *OperationLog) Emit(ctx context.Context, op domain.Operation) error {
	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to marshal operation: %w", err)
	}
	key := l.key(op.ProjectID, op.TimelineID)

	pipe := l.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	if l.maxLen > 0 {
		pipe.LTrim(ctx, key, -l.maxLen, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append operation: %w", err)
	}
	return nil
}

// Range returns the timeline, oldest first.
func (l *OperationLog) Range(ctx context.Context, projectID, timelineID string) ([]domain.Operation, error) {
	raw, err := l.client.LRange(ctx, l.key(projectID, timelineID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read operations: %w", err)
	}
	ops := make([]domain.Operation, 0, len(raw))
	for i, r := range raw {
		var op domain.Operation
		if err := json.Unmarshal([]byte(r), &op); err != nil {
			return nil, fmt.Errorf("failed to decode operation %d: %w", i, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}
