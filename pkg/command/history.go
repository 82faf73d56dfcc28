package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/goflowspace/goflow/internal/logging"
	"github.com/goflowspace/goflow/pkg/domain"
	"github.com/goflowspace/goflow/pkg/graph"
	"github.com/goflowspace/goflow/pkg/ports"
)

// History is the bounded undo/redo log of an editing session.
type History struct {
	mu       sync.Mutex
	undo     []Command
	redo     []Command
	capacity int

	store    *graph.Store
	view     *View
	notifier ports.Notifier
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	now      func() time.Time
}

// HistoryOption configures a History.
type HistoryOption func(*History)

// WithCapacity bounds both stacks. Non-positive values keep the default.
func WithCapacity(n int) HistoryOption {
	return func(h *History) {
		if n > 0 {
			h.capacity = n
		}
	}
}

// WithNotifier sets where refusals are surfaced.
func WithNotifier(n ports.Notifier) HistoryOption {
	return func(h *History) {
		if n != nil {
			h.notifier = n
		}
	}
}

// WithHooks registers lifecycle callbacks.
func WithHooks(hooks domain.LifecycleHooks) HistoryOption {
	return func(h *History) {
		h.hooks = hooks
	}
}

// WithLogger configures a logger for the History.
func WithLogger(logger *slog.Logger) HistoryOption {
	return func(h *History) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHistory creates an empty history over the given repository and view.
func NewHistory(store *graph.Store, view *View, opts ...HistoryOption) *History {
	h := &History{
		capacity: domain.DefaultHistoryCapacity,
		store:    store,
		view:     view,
		notifier: ports.NopNotifier{},
		logger:   logging.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Execute runs cmd and records it. The redo stack is invalidated and the
// oldest entry is evicted past capacity. A failed command is not recorded.
func (h *History) Execute(ctx context.Context, cmd Command) error {
	h.mu.Lock()
	if err := cmd.Execute(ctx); err != nil {
		h.mu.Unlock()
		if errors.Is(err, domain.ErrCommandSkipped) {
			h.logger.Info("command skipped", "command", cmd.Metadata().Description, "error", err)
		}
		return err
	}
	h.undo = h.push(h.undo, cmd)
	h.redo = nil
	ev := h.eventLocked(domain.EventCommandExecuted, cmd)
	h.mu.Unlock()

	h.logger.Debug("command executed", "command", ev.Description, "layer", ev.LayerID, "undo_depth", ev.UndoDepth)
	if h.hooks.OnCommandExecuted != nil {
		h.hooks.OnCommandExecuted(ctx, ev)
	}
	return nil
}

// Undo reverts the most recent command if both safety gates admit it.
// It reports whether a command was undone; a refusal is not an error.
func (h *History) Undo(ctx context.Context) (bool, error) {
	return h.step(ctx, true)
}

// Redo re-applies the most recently undone command if both safety gates admit it.
func (h *History) Redo(ctx context.Context) (bool, error) {
	return h.step(ctx, false)
}

func (h *History) step(ctx context.Context, undo bool) (bool, error) {
	action := "redo"
	if undo {
		action = "undo"
	}

	h.mu.Lock()
	stack := &h.redo
	if undo {
		stack = &h.undo
	}
	if len(*stack) == 0 {
		h.mu.Unlock()
		h.refuse(ctx, action, domain.RefusedEmpty, nil)
		return false, nil
	}
	cmd := (*stack)[len(*stack)-1]
	if current := h.view.Current(); !h.store.Exists(current) {
		h.logger.Warn("viewed layer is gone, returning to root", "layer", current)
		h.view.Navigate(h.store.RootID())
	}
	if reason := h.admit(cmd, undo); reason != "" {
		h.mu.Unlock()
		h.refuse(ctx, action, reason, cmd)
		return false, nil
	}
	*stack = (*stack)[:len(*stack)-1]

	var err error
	if undo {
		err = cmd.Undo(ctx)
	} else {
		err = cmd.Redo(ctx)
	}
	if err != nil {
		h.mu.Unlock()
		h.logger.Warn("dropping command that failed to "+action, "command", cmd.Metadata().Description, "error", err)
		return false, fmt.Errorf("%s %q: %w", action, cmd.Metadata().Description, err)
	}

	var ev *domain.CommandEvent
	if undo {
		h.redo = h.push(h.redo, cmd)
		ev = h.eventLocked(domain.EventCommandUndone, cmd)
	} else {
		h.undo = h.push(h.undo, cmd)
		ev = h.eventLocked(domain.EventCommandRedone, cmd)
	}
	h.mu.Unlock()

	h.logger.Debug("command "+action+" done", "command", ev.Description, "layer", ev.LayerID)
	switch {
	case undo && h.hooks.OnCommandUndone != nil:
		h.hooks.OnCommandUndone(ctx, ev)
	case !undo && h.hooks.OnCommandRedone != nil:
		h.hooks.OnCommandRedone(ctx, ev)
	}
	return true, nil
}

// admit runs the view-affinity gate, then the structural-safety gate.
// A view on a missing layer counts as the root. admit never moves the view.
// It returns the refusal reason, or "" when the step may proceed.
func (h *History) admit(cmd Command, undo bool) domain.RefusalReason {
	layerID := cmd.Metadata().LayerID
	current := h.view.Current()
	if !h.store.Exists(current) {
		current = h.store.RootID()
	}
	if layerID != "" && layerID != current && h.store.Exists(layerID) {
		return domain.RefusedWrongLayer
	}

	if undo {
		if s, ok := cmd.(SafeUndoer); ok && !s.CanSafelyUndo() {
			return domain.RefusedUnsafe
		}
		return ""
	}
	if s, ok := cmd.(SafeRedoer); ok && !s.CanSafelyRedo() {
		return domain.RefusedUnsafe
	}
	return ""
}

// CanUndo reports whether Undo would be admitted right now.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo) > 0 && h.admit(h.undo[len(h.undo)-1], true) == ""
}

// CanRedo reports whether Redo would be admitted right now.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redo) > 0 && h.admit(h.redo[len(h.redo)-1], false) == ""
}

func (h *History) refuse(ctx context.Context, action string, reason domain.RefusalReason, cmd Command) {
	ev := &domain.RefusalEvent{
		EventBase:   domain.EventBase{Timestamp: h.now(), Type: domain.EventCommandRefused},
		Action:      action,
		Reason:      reason,
		CurrentView: h.view.Current(),
	}

	switch reason {
	case domain.RefusedWrongLayer:
		meta := cmd.Metadata()
		ev.LayerID = meta.LayerID
		path, err := h.store.Path(meta.LayerID)
		if err != nil {
			path = []string{meta.LayerID}
		}
		h.notifier.ShowErrorWithNavigation(
			fmt.Sprintf("Cannot %s %q from this layer", action, meta.Description),
			"Go to layer",
			path,
		)
	case domain.RefusedUnsafe:
		meta := cmd.Metadata()
		ev.LayerID = meta.LayerID
		h.notifier.ShowError(fmt.Sprintf("Cannot %s %q while viewing a layer it removes", action, meta.Description))
	}

	h.logger.Debug(action+" refused", "reason", reason, "layer", ev.LayerID, "view", ev.CurrentView)
	if h.hooks.OnCommandRefused != nil {
		h.hooks.OnCommandRefused(ctx, ev)
	}
}

func (h *History) push(stack []Command, cmd Command) []Command {
	stack = append(stack, cmd)
	if over := len(stack) - h.capacity; over > 0 {
		stack = append([]Command(nil), stack[over:]...)
	}
	return stack
}

func (h *History) eventLocked(typ domain.EventType, cmd Command) *domain.CommandEvent {
	meta := cmd.Metadata()
	return &domain.CommandEvent{
		EventBase:   domain.EventBase{Timestamp: h.now(), Type: typ},
		Description: meta.Description,
		LayerID:     meta.LayerID,
		UndoDepth:   len(h.undo),
		RedoDepth:   len(h.redo),
	}
}

// UndoStack returns the undoable commands, oldest first.
func (h *History) UndoStack() []Command {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Command(nil), h.undo...)
}

// RedoStack returns the redoable commands, oldest first.
func (h *History) RedoStack() []Command {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Command(nil), h.redo...)
}

// Clear drops both stacks, as on a document switch.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.undo = nil
	h.redo = nil
}
