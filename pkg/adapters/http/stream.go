package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/goflowspace/goflow/internal/logging"
	"github.com/goflowspace/goflow/pkg/domain"
)

// StreamManager fans operation records out to the SSE clients of a project.
// It implements ports.OperationSink so editors can emit into it directly.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // ProjectID -> Set of Channels
	logger      *slog.Logger
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

func (sm *StreamManager) Subscribe(projectID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[projectID]; !ok {
		sm.subscribers[projectID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[projectID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[projectID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, projectID)
			}
		}
	}
}

func (sm *StreamManager) Broadcast(projectID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[projectID] {
		select {
		case ch <- msg:
		default:
			// Slow client.
			sm.logger.Warn("SSE: Client buffer full, dropping message", "project_id", projectID)
		}
	}
}

// Emit implements ports.OperationSink.
func (sm *StreamManager) Emit(_ context.Context, op domain.Operation) error {
	data, err := json.Marshal(op)
	if err != nil {
		return err
	}
	sm.Broadcast(op.ProjectID, string(data))
	return nil
}
