package observability

import (
	"context"
	"log/slog"

	"github.com/goflowspace/goflow/pkg/domain"
)

// LoggingHooks returns lifecycle hooks that write one structured record per event.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	command := func(ctx context.Context, e *domain.CommandEvent) {
		logger.InfoContext(ctx, string(e.Type),
			"command", e.Description,
			"layer_id", e.LayerID,
			"undo_depth", e.UndoDepth,
			"redo_depth", e.RedoDepth,
		)
	}
	return domain.LifecycleHooks{
		OnCommandExecuted: command,
		OnCommandUndone:   command,
		OnCommandRedone:   command,
		OnCommandRefused: func(ctx context.Context, e *domain.RefusalEvent) {
			logger.WarnContext(ctx, string(e.Type),
				"action", e.Action,
				"reason", e.Reason,
				"layer_id", e.LayerID,
				"view", e.CurrentView,
			)
		},
		OnPortsSynced: func(ctx context.Context, e *domain.PortsEvent) {
			logger.DebugContext(ctx, string(e.Type),
				"layer_id", e.LayerID,
				"starting", e.StartingCount,
				"ending", e.EndingCount,
			)
		},
	}
}

// Chain merges several hook sets; each callback runs the non-nil callbacks
// of every set in order.
func Chain(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range sets {
		out.OnCommandExecuted = chainCommand(out.OnCommandExecuted, h.OnCommandExecuted)
		out.OnCommandUndone = chainCommand(out.OnCommandUndone, h.OnCommandUndone)
		out.OnCommandRedone = chainCommand(out.OnCommandRedone, h.OnCommandRedone)
		if a, b := out.OnCommandRefused, h.OnCommandRefused; b != nil {
			out.OnCommandRefused = func(ctx context.Context, e *domain.RefusalEvent) {
				if a != nil {
					a(ctx, e)
				}
				b(ctx, e)
			}
		}
		if a, b := out.OnPortsSynced, h.OnPortsSynced; b != nil {
			out.OnPortsSynced = func(ctx context.Context, e *domain.PortsEvent) {
				if a != nil {
					a(ctx, e)
				}
				b(ctx, e)
			}
		}
	}
	return out
}

func chainCommand(a, b func(context.Context, *domain.CommandEvent)) func(context.Context, *domain.CommandEvent) {
	switch {
	case b == nil:
		return a
	case a == nil:
		return b
	}
	return func(ctx context.Context, e *domain.CommandEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}
