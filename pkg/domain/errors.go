package domain

import "errors"

// ErrLayerNotFound is returned when a layer id is not present in the repository.
var ErrLayerNotFound = errors.New("layer not found")

// ErrNodeNotFound is returned when a node id is not present in the addressed layer.
var ErrNodeNotFound = errors.New("node not found")

// ErrEdgeNotFound is returned when an edge id is not present in the addressed layer.
var ErrEdgeNotFound = errors.New("edge not found")

// ErrDuplicateNode is returned when a node id is already taken in the layer.
var ErrDuplicateNode = errors.New("node already exists")

// ErrDuplicateEdge is returned when an edge with the same endpoints and handles exists.
var ErrDuplicateEdge = errors.New("edge already exists")

// ErrChoiceToChoice is returned when connecting a choice node directly to another choice node.
var ErrChoiceToChoice = errors.New("choice nodes cannot be connected directly")

// ErrInvalidNode is returned when a node's payload does not match its kind.
var ErrInvalidNode = errors.New("invalid node")

// ErrInvalidEdge is returned when an edge references missing endpoints or ports.
var ErrInvalidEdge = errors.New("invalid edge")

// ErrCycle is returned when a layer hierarchy would contain a cycle.
var ErrCycle = errors.New("layer hierarchy contains a cycle")

// ErrEmptySelection is returned when a multi-node operation has nothing selected.
var ErrEmptySelection = errors.New("nothing selected")

// ErrEmptyClipboard is returned when pasting with an empty clipboard.
var ErrEmptyClipboard = errors.New("clipboard is empty")

// ErrInvalidTransition is returned when a command is driven out of its state machine.
var ErrInvalidTransition = errors.New("invalid command state transition")

// ErrCommandSkipped marks a composite command that aborted before mutating state.
// Such commands are not recorded in history.
var ErrCommandSkipped = errors.New("command skipped")

// ErrProjectNotFound is returned when a project id cannot be found in the store.
var ErrProjectNotFound = errors.New("project not found")

// ErrIDGenerator is returned when the identity generator fails.
var ErrIDGenerator = errors.New("id generator failed")

// ErrDuplicateLayer is returned when materializing a layer whose id is already in the repository.
var ErrDuplicateLayer = errors.New("layer already exists")
