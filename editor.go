package goflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/goflowspace/goflow/internal/logging"
	"github.com/goflowspace/goflow/pkg/clipboard"
	"github.com/goflowspace/goflow/pkg/command"
	"github.com/goflowspace/goflow/pkg/domain"
	"github.com/goflowspace/goflow/pkg/graph"
	"github.com/goflowspace/goflow/pkg/ports"
	"github.com/goflowspace/goflow/pkg/schema"
)

// Editor is the high-level entry point of the library: one editing session
// over one project. It owns the layer repository, the history, the clipboard
// and the current view, and wires every command to them.
type Editor struct {
	projectID  string
	timelineID string
	capacity   int

	ids       ports.IDGenerator
	sink      ports.OperationSink
	notifier  ports.Notifier
	refresher ports.ViewRefresher
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	schemas   schema.ConditionSchemas

	store     *graph.Store
	view      *command.View
	env       *command.Env
	history   *command.History
	clipboard *clipboard.Clipboard
}

// Option defines a functional option for configuring the Editor.
type Option func(*Editor)

// WithProject sets the project and timeline stamped on every operation record.
func WithProject(projectID, timelineID string) Option {
	return func(e *Editor) {
		e.projectID = projectID
		e.timelineID = timelineID
	}
}

// WithIDGenerator overrides the UUID generator used for new entities.
func WithIDGenerator(ids ports.IDGenerator) Option {
	return func(e *Editor) {
		e.ids = ids
	}
}

// WithSink sets where operation records are forwarded.
func WithSink(sink ports.OperationSink) Option {
	return func(e *Editor) {
		e.sink = sink
	}
}

// WithNotifier sets where user-facing errors and refusals are surfaced.
func WithNotifier(n ports.Notifier) Option {
	return func(e *Editor) {
		e.notifier = n
	}
}

// WithRefresher sets the view refresher told about composite mutations.
func WithRefresher(r ports.ViewRefresher) Option {
	return func(e *Editor) {
		e.refresher = r
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Editor) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the editor.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Editor) {
		e.logger = logger
	}
}

// WithHistoryCapacity bounds the undo and redo stacks (default 100).
func WithHistoryCapacity(n int) Option {
	return func(e *Editor) {
		e.capacity = n
	}
}

// WithConditionSchemas checks condition parameters on edit and on load.
func WithConditionSchemas(s schema.ConditionSchemas) Option {
	return func(e *Editor) {
		e.schemas = s
	}
}

// New creates an editor holding an empty project with just the root layer.
func New(opts ...Option) *Editor {
	e := &Editor{
		projectID:  "local",
		timelineID: "main",
		ids:        ports.UUIDGenerator{},
		sink:       ports.NopSink{},
		notifier:   ports.NopNotifier{},
		refresher:  ports.NopRefresher{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	e.logger = e.logger.With("project", e.projectID)

	e.store = graph.NewStore(e.projectID, e.timelineID,
		graph.WithSink(e.sink),
		graph.WithIDGenerator(e.ids),
		graph.WithHooks(e.hooks),
		graph.WithLogger(e.logger),
	)
	e.view = command.NewView(e.store.RootID())
	e.env = command.NewEnv(e.store, e.view)
	e.env.Refresher = e.refresher
	e.env.Logger = e.logger
	e.history = command.NewHistory(e.store, e.view,
		command.WithCapacity(e.capacity),
		command.WithNotifier(e.notifier),
		command.WithHooks(e.hooks),
		command.WithLogger(e.logger),
	)
	e.clipboard = clipboard.New()
	return e
}

// Store returns the layer repository. Mutating it directly bypasses history.
func (e *Editor) Store() *graph.Store { return e.store }

// History returns the undo/redo log.
func (e *Editor) History() *command.History { return e.history }

// Clipboard returns the session clipboard.
func (e *Editor) Clipboard() *clipboard.Clipboard { return e.clipboard }

// CurrentLayer returns the id of the viewed layer.
func (e *Editor) CurrentLayer() string { return e.view.Current() }

// Navigate switches the viewed layer.
func (e *Editor) Navigate(layerID string) error {
	if !e.store.Exists(layerID) {
		return fmt.Errorf("navigate to %s: %w", layerID, domain.ErrLayerNotFound)
	}
	e.view.Navigate(layerID)
	return nil
}

// Breadcrumb returns the path from the root to the viewed layer.
func (e *Editor) Breadcrumb() ([]string, error) {
	return e.store.Path(e.view.Current())
}

// current resolves the viewed layer, falling back to the root when it vanished.
func (e *Editor) current() string {
	id := e.view.Current()
	if e.store.Exists(id) {
		return id
	}
	e.logger.Warn("viewed layer is gone, returning to root", "layer", id)
	e.view.Navigate(e.store.RootID())
	return e.store.RootID()
}

// run records cmd in history. Errors the user can fix are also surfaced
// through the notifier.
func (e *Editor) run(ctx context.Context, cmd command.Command, err error) error {
	if err == nil {
		err = e.history.Execute(ctx, cmd)
	}
	if err != nil {
		e.report(err)
	}
	return err
}

func (e *Editor) report(err error) {
	switch {
	case errors.Is(err, domain.ErrEmptySelection):
		e.notifier.ShowError("Nothing is selected")
	case errors.Is(err, domain.ErrEmptyClipboard):
		e.notifier.ShowError("The clipboard is empty")
	case errors.Is(err, domain.ErrChoiceToChoice):
		e.notifier.ShowError("Choice nodes cannot be connected directly")
	case errors.Is(err, domain.ErrDuplicateEdge):
		e.notifier.ShowError("These nodes are already connected")
	case errors.Is(err, domain.ErrCommandSkipped):
		e.notifier.ShowError("The target layer no longer exists")
	}
}

// AddNode creates node in the viewed layer and returns its id.
// An empty node id is filled in from the id generator. node itself is not
// modified.
func (e *Editor) AddNode(ctx context.Context, node *domain.Node) (string, error) {
	if node != nil && node.ID == "" {
		id, err := e.store.NewID()
		if err != nil {
			return "", err
		}
		node = node.Clone()
		node.ID = id
	}
	cmd, err := command.NewCreateNode(e.env, e.current(), node)
	if err := e.run(ctx, cmd, err); err != nil {
		return "", err
	}
	return cmd.NodeID(), nil
}

// AddLayer creates an empty layer in the viewed layer and returns its id.
// An empty name gets the next default "Layer N" name.
func (e *Editor) AddLayer(ctx context.Context, at domain.Coordinates, name string) (string, error) {
	cmd, err := command.NewCreateLayer(e.env, e.current(), at, name)
	if err := e.run(ctx, cmd, err); err != nil {
		return "", err
	}
	return cmd.LayerID(), nil
}

// MoveNode repositions a node of the viewed layer.
func (e *Editor) MoveNode(ctx context.Context, nodeID string, to domain.Coordinates) error {
	cmd, err := command.NewMoveNode(e.env, e.current(), nodeID, to)
	return e.run(ctx, cmd, err)
}

// EditNode replaces the payload of a narrative, choice or note node.
func (e *Editor) EditNode(ctx context.Context, nodeID string, data domain.NodeData) error {
	cmd, err := command.NewEditNodeData(e.env, e.current(), nodeID, data)
	return e.run(ctx, cmd, err)
}

// Delete removes the selected nodes of the viewed layer together with their
// edges, nested layers and the ports that exposed them.
func (e *Editor) Delete(ctx context.Context, nodeIDs ...string) error {
	layerID := e.current()
	if len(nodeIDs) == 1 {
		cmd, err := command.NewDeleteNode(e.env, layerID, nodeIDs[0])
		return e.run(ctx, cmd, err)
	}
	cmd, err := command.NewDeleteNodes(e.env, layerID, nodeIDs)
	return e.run(ctx, cmd, err)
}

// Connect adds an edge in the viewed layer and returns its id.
func (e *Editor) Connect(ctx context.Context, p graph.ConnectParams) (string, error) {
	cmd, err := command.NewConnect(e.env, e.current(), p)
	if err := e.run(ctx, cmd, err); err != nil {
		return "", err
	}
	return cmd.EdgeID(), nil
}

// DeleteEdge removes an edge of the viewed layer.
func (e *Editor) DeleteEdge(ctx context.Context, edgeID string) error {
	cmd, err := command.NewDeleteEdge(e.env, e.current(), edgeID)
	return e.run(ctx, cmd, err)
}

// EditConditions replaces the condition groups of an edge of the viewed layer.
func (e *Editor) EditConditions(ctx context.Context, edgeID string, groups []domain.ConditionGroup) error {
	if err := schema.ValidateConditions(e.schemas, groups); err != nil {
		e.notifier.ShowError(err.Error())
		return fmt.Errorf("edit conditions: %w", err)
	}
	cmd, err := command.NewEditEdgeConditions(e.env, e.current(), edgeID, groups)
	return e.run(ctx, cmd, err)
}

// UpdateLayerInfo renames a layer and sets its description.
func (e *Editor) UpdateLayerInfo(ctx context.Context, layerID, name, description string) error {
	cmd, err := command.NewUpdateLayerInfo(e.env, layerID, name, description)
	return e.run(ctx, cmd, err)
}

// Copy places the selection, with everything nested under it, on the clipboard.
func (e *Editor) Copy(nodeIDs ...string) error {
	f, err := clipboard.Capture(e.store, e.current(), nodeIDs)
	if err != nil {
		e.report(err)
		return err
	}
	e.clipboard.Copy(f)
	e.logger.Debug("copied to clipboard", "nodes", len(f.Nodes), "layers", len(f.Layers))
	return nil
}

// Cut copies the selection to the clipboard and deletes it in one undoable step.
func (e *Editor) Cut(ctx context.Context, nodeIDs ...string) error {
	layerID := e.current()
	f, err := clipboard.Capture(e.store, layerID, nodeIDs)
	if err != nil {
		e.report(err)
		return err
	}
	cmd, err := command.NewCut(e.env, layerID, nodeIDs)
	if err := e.run(ctx, cmd, err); err != nil {
		return err
	}
	e.clipboard.Cut(f)
	return nil
}

// Paste inserts fresh copies of the clipboard content into the viewed layer
// and returns the ids of the inserted top-level nodes. Content that came from
// a cut keeps its names and positions the first time it is pasted.
func (e *Editor) Paste(ctx context.Context) ([]string, error) {
	f, mode, err := e.clipboard.Peek()
	if err != nil {
		e.report(err)
		return nil, err
	}
	offset := clipboard.DefaultOffset
	if mode == clipboard.ModeCut {
		offset = domain.Coordinates{}
	}
	ids, err := e.insert(ctx, f, mode, offset, domain.OpNodesPasted)
	if err != nil {
		return nil, err
	}
	if mode == clipboard.ModeCut {
		e.clipboard.MarkPasted()
	}
	return ids, nil
}

// Duplicate inserts fresh copies of the selection next to the originals and
// returns the ids of the copies. The clipboard is left untouched.
func (e *Editor) Duplicate(ctx context.Context, nodeIDs ...string) ([]string, error) {
	f, err := clipboard.Capture(e.store, e.current(), nodeIDs)
	if err != nil {
		e.report(err)
		return nil, err
	}
	return e.insert(ctx, f, clipboard.ModeDuplicate, clipboard.DefaultOffset, domain.OpNodesDuplicated)
}

// Import inserts the content read by importer into the viewed layer.
// Source ids are replaced by fresh ones.
func (e *Editor) Import(ctx context.Context, importer ports.Importer) ([]string, error) {
	in, err := importer.Import(ctx)
	if err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	f := &clipboard.Fragment{Nodes: in.Nodes, Edges: in.Edges}
	for _, n := range f.Nodes {
		if n.IsLayer() {
			return nil, fmt.Errorf("import: %w: layer node %s without content", domain.ErrInvalidNode, n.ID)
		}
		if n.ID == "" {
			if n.ID, err = e.store.NewID(); err != nil {
				return nil, err
			}
		}
	}
	for _, edge := range f.Edges {
		if edge.ID == "" {
			if edge.ID, err = e.store.NewID(); err != nil {
				return nil, err
			}
		}
	}
	return e.insert(ctx, f, clipboard.ModeImport, domain.Coordinates{}, domain.OpNodesImported)
}

func (e *Editor) insert(ctx context.Context, f *clipboard.Fragment, mode clipboard.Mode, offset domain.Coordinates, op domain.OpType) ([]string, error) {
	layerID := e.current()
	dest, err := e.store.Layer(layerID)
	if err != nil {
		return nil, err
	}
	if f.SourceLayerID == "" {
		f.SourceLayerID = layerID
	}

	clone, _, err := clipboard.Clone(f, clipboard.Target{LayerID: layerID, Depth: dest.Depth, Taken: e.store.InUse}, mode, e.ids)
	if err != nil {
		e.report(err)
		return nil, err
	}
	clipboard.Arrange(clone, clipboard.Occupied(dest), offset)

	cmd, err := command.NewInsertSubtree(e.env, layerID, clone, op)
	if err := e.run(ctx, cmd, err); err != nil {
		return nil, err
	}
	e.logger.Debug("inserted subtree", "mode", mode.String(), "layer", layerID, "nodes", len(clone.Nodes))
	return cmd.NodeIDs(), nil
}

// Undo reverts the last command. It reports false when a safety gate refused.
func (e *Editor) Undo(ctx context.Context) (bool, error) {
	return e.history.Undo(ctx)
}

// Redo re-applies the last undone command. It reports false when a safety gate refused.
func (e *Editor) Redo(ctx context.Context) (bool, error) {
	return e.history.Redo(ctx)
}

// CanUndo reports whether Undo would currently be admitted.
func (e *Editor) CanUndo() bool { return e.history.CanUndo() }

// CanRedo reports whether Redo would currently be admitted.
func (e *Editor) CanRedo() bool { return e.history.CanRedo() }

// Snapshot returns a deep copy of the whole project.
func (e *Editor) Snapshot() *domain.Project {
	return e.store.Snapshot()
}

// Load replaces the project after validating it. History is cleared and the
// view returns to the root layer, as on a document switch.
func (e *Editor) Load(p *domain.Project) error {
	if p == nil {
		return fmt.Errorf("load project: %w", domain.ErrProjectNotFound)
	}
	if err := schema.ValidateProject(p, schema.WithConditionSchemas(e.schemas)); err != nil {
		return fmt.Errorf("load project %s: %w", p.ID, err)
	}
	if err := e.store.Load(p); err != nil {
		return fmt.Errorf("load project %s: %w", p.ID, err)
	}
	e.history.Clear()
	e.view.Navigate(e.store.RootID())
	e.logger.Info("project loaded", "layers", len(p.Layers), "nodes", p.NodeCount())
	return nil
}
