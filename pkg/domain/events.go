package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventCommandExecuted EventType = "command_executed"
	EventCommandUndone   EventType = "command_undone"
	EventCommandRedone   EventType = "command_redone"
	EventCommandRefused  EventType = "command_refused"
	EventPortsSynced     EventType = "ports_synced"
)

// RefusalReason explains why an undo or redo was not performed.
type RefusalReason string

const (
	RefusedEmpty      RefusalReason = "empty"
	RefusedWrongLayer RefusalReason = "wrong_layer"
	RefusedUnsafe     RefusalReason = "unsafe"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// CommandEvent describes a history transition of one command.
type CommandEvent struct {
	EventBase
	Description string `json:"description"`
	LayerID     string `json:"layer_id"`
	UndoDepth   int    `json:"undo_depth"`
	RedoDepth   int    `json:"redo_depth"`
	Err         error  `json:"-"`
}

// RefusalEvent describes an undo or redo that a safety gate refused.
type RefusalEvent struct {
	EventBase
	Action      string        `json:"action"` // "undo" or "redo"
	Reason      RefusalReason `json:"reason"`
	LayerID     string        `json:"layer_id"`
	CurrentView string        `json:"current_view"`
}

// PortsEvent is emitted after a layer's ports were recomputed.
type PortsEvent struct {
	EventBase
	LayerID       string `json:"layer_id"`
	StartingCount int    `json:"starting_count"`
	EndingCount   int    `json:"ending_count"`
}

// LifecycleHooks defines callbacks for editor observability.
type LifecycleHooks struct {
	OnCommandExecuted func(context.Context, *CommandEvent)
	OnCommandUndone   func(context.Context, *CommandEvent)
	OnCommandRedone   func(context.Context, *CommandEvent)
	OnCommandRefused  func(context.Context, *RefusalEvent)
	OnPortsSynced     func(context.Context, *PortsEvent)
}
