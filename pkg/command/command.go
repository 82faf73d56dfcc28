package command

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/goflowspace/goflow/internal/logging"
	"github.com/goflowspace/goflow/pkg/domain"
	"github.com/goflowspace/goflow/pkg/graph"
	"github.com/goflowspace/goflow/pkg/ports"
)

// State is the lifecycle position of a command.
type State int

const (
	StateCreated State = iota
	StateExecuted
	StateUndone
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateExecuted:
		return "executed"
	case StateUndone:
		return "undone"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Metadata describes a command for history and navigation.
type Metadata struct {
	Timestamp   time.Time
	Description string
	// LayerID is the layer the command was created in.
	LayerID string
}

// Command is an undoable unit of graph mutation.
type Command interface {
	Execute(ctx context.Context) error
	Undo(ctx context.Context) error
	Redo(ctx context.Context) error
	Metadata() Metadata
	State() State
}

// SafeUndoer is implemented by commands that can refuse an undo that would
// strand the viewer inside a layer being removed.
type SafeUndoer interface {
	CanSafelyUndo() bool
}

// SafeRedoer is the redo counterpart of SafeUndoer.
type SafeRedoer interface {
	CanSafelyRedo() bool
}

// View tracks the layer the user is looking at.
type View struct {
	mu      sync.RWMutex
	current string
}

// NewView creates a view on layerID.
func NewView(layerID string) *View {
	return &View{current: layerID}
}

// Current returns the viewed layer id.
func (v *View) Current() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// Navigate switches the viewed layer.
func (v *View) Navigate(layerID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = layerID
}

// Env is the editing session every command runs against.
type Env struct {
	Store     *graph.Store
	View      *View
	Refresher ports.ViewRefresher
	Now       func() time.Time
	Logger    *slog.Logger
}

// NewEnv wires an environment with no-op collaborators where none are given.
func NewEnv(store *graph.Store, view *View) *Env {
	return &Env{
		Store:     store,
		View:      view,
		Refresher: ports.NopRefresher{},
		Now:       time.Now,
		Logger:    logging.NewNop(),
	}
}

// step is the mutation a command wraps.
type step interface {
	apply(ctx context.Context) error
	revert(ctx context.Context) error
}

// reapplier is implemented by steps whose redo differs from their first run.
type reapplier interface {
	reapply(ctx context.Context) error
}

// base carries the state machine and metadata shared by all commands.
type base struct {
	env   *Env
	meta  Metadata
	state State
	self  step
}

func newBase(env *Env, layerID, description string, self step) base {
	return base{
		env:  env,
		meta: Metadata{Timestamp: env.Now(), Description: description, LayerID: layerID},
		self: self,
	}
}

func (b *base) Metadata() Metadata { return b.meta }

func (b *base) State() State { return b.state }

func (b *base) Execute(ctx context.Context) error {
	return b.move(StateCreated, StateExecuted, func() error { return b.self.apply(ctx) })
}

func (b *base) Undo(ctx context.Context) error {
	return b.move(StateExecuted, StateUndone, func() error { return b.self.revert(ctx) })
}

func (b *base) Redo(ctx context.Context) error {
	return b.move(StateUndone, StateExecuted, func() error {
		if r, ok := b.self.(reapplier); ok {
			return r.reapply(ctx)
		}
		return b.self.apply(ctx)
	})
}

func (b *base) move(from, to State, fn func() error) error {
	if b.state != from {
		return fmt.Errorf("%w: %s -> %s (%s)", domain.ErrInvalidTransition, b.state, to, b.meta.Description)
	}
	if err := fn(); err != nil {
		return err
	}
	b.state = to
	return nil
}

// emit forwards a change record, paired with its ".undo" variant when reverting.
func (b *base) emit(ctx context.Context, typ domain.OpType, undo bool, payload map[string]any) {
	if undo {
		typ = typ.Undo()
	}
	b.env.Store.Emit(ctx, typ, b.meta.LayerID, payload)
}

// viewInside reports whether the viewed layer is one of layerIDs or nested below one.
func (b *base) viewInside(layerIDs ...string) bool {
	if len(layerIDs) == 0 {
		return false
	}
	path, err := b.env.Store.Path(b.env.View.Current())
	if err != nil {
		return false
	}
	set := make(map[string]bool, len(layerIDs))
	for _, id := range layerIDs {
		set[id] = true
	}
	for _, id := range path {
		if set[id] {
			return true
		}
	}
	return false
}
