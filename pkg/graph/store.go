package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/goflowspace/goflow/internal/logging"
	"github.com/goflowspace/goflow/pkg/domain"
	"github.com/goflowspace/goflow/pkg/ports"
)

// Store is the layer repository: the sole owner of every layer of a project.
// All structural mutation goes through it. Mutators never record history.
type Store struct {
	mu sync.RWMutex

	projectID  string
	timelineID string
	rootID     string
	layers     map[string]*domain.Layer
	counter    int // last number used for a default layer name

	ids    ports.IDGenerator
	sink   ports.OperationSink
	hooks  domain.LifecycleHooks
	logger *slog.Logger
	now    func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithSink sets the sink receiving change records.
func WithSink(sink ports.OperationSink) Option {
	return func(s *Store) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithIDGenerator sets the generator used for edge and layer ids.
func WithIDGenerator(ids ports.IDGenerator) Option {
	return func(s *Store) {
		if ids != nil {
			s.ids = ids
		}
	}
}

// WithHooks registers lifecycle callbacks (OnPortsSynced).
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Store) {
		s.hooks = hooks
	}
}

// WithLogger configures a logger for the Store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used to stamp operations.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates a repository holding an empty root layer.
func NewStore(projectID, timelineID string, opts ...Option) *Store {
	s := &Store{
		projectID:  projectID,
		timelineID: timelineID,
		rootID:     domain.RootLayerID,
		layers:     make(map[string]*domain.Layer),
		ids:        ports.UUIDGenerator{},
		sink:       ports.NopSink{},
		logger:     logging.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.layers[s.rootID] = domain.NewLayer(s.rootID, domain.RootLayerName, "", 0)
	return s
}

// ProjectID returns the id of the loaded project.
func (s *Store) ProjectID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projectID
}

// TimelineID returns the id of the loaded timeline.
func (s *Store) TimelineID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timelineID
}

// RootID returns the id of the root layer.
func (s *Store) RootID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rootID
}

// NewID draws an identifier from the injected generator.
// A panicking or empty generator is reported as domain.ErrIDGenerator.
func (s *Store) NewID() (id string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", domain.ErrIDGenerator, r)
		}
	}()
	id = s.ids.NewID()
	if id == "" {
		return "", fmt.Errorf("%w: empty id", domain.ErrIDGenerator)
	}
	return id, nil
}

// --- Read side ---

// Exists reports whether a layer with the given id is materialized.
func (s *Store) Exists(layerID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.layers[layerID]
	return ok
}

// InUse reports whether id names a layer, or a node or edge of any layer.
func (s *Store) InUse(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.layers[id]; ok {
		return true
	}
	for _, l := range s.layers {
		if _, ok := l.Nodes[id]; ok {
			return true
		}
		if _, ok := l.Edges[id]; ok {
			return true
		}
	}
	return false
}

// Layer returns a deep copy of the layer.
func (s *Store) Layer(layerID string) (*domain.Layer, error) {
	s.mu.RLock()
	l, ok := s.layers[layerID]
	if ok {
		defer s.mu.RUnlock()
		return l.Clone(), nil
	}
	s.mu.RUnlock()

	if layerID != s.RootID() {
		return nil, fmt.Errorf("%w: %s", domain.ErrLayerNotFound, layerID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureRoot().Clone(), nil
}

// Node returns a deep copy of a node of the layer.
func (s *Store) Node(layerID, nodeID string) (*domain.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.layers[layerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrLayerNotFound, layerID)
	}
	n, ok := l.Nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s in layer %s", domain.ErrNodeNotFound, nodeID, layerID)
	}
	return n.Clone(), nil
}

// Edge returns a deep copy of an edge of the layer.
func (s *Store) Edge(layerID, edgeID string) (*domain.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.layers[layerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrLayerNotFound, layerID)
	}
	e, ok := l.Edges[edgeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s in layer %s", domain.ErrEdgeNotFound, edgeID, layerID)
	}
	return e.Clone(), nil
}

// LayerIDs returns every layer id, shallowest first, ties broken by id.
func (s *Store) LayerIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.layers))
	for id := range s.layers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		di, dj := s.layers[ids[i]].Depth, s.layers[ids[j]].Depth
		if di != dj {
			return di < dj
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Path returns the ids from the root down to layerID, inclusive.
func (s *Store) Path(layerID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pathLocked(layerID)
}

func (s *Store) pathLocked(layerID string) ([]string, error) {
	var path []string
	seen := make(map[string]bool)
	for id := layerID; id != ""; {
		l, ok := s.layers[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrLayerNotFound, id)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: at %s", domain.ErrCycle, id)
		}
		seen[id] = true
		path = append(path, id)
		id = l.ParentLayerID
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// Descendants returns the ids of every layer nested below layerID, breadth first.
func (s *Store) Descendants(layerID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.descendantsLocked(layerID)
}

func (s *Store) descendantsLocked(layerID string) []string {
	children := make(map[string][]string)
	for id, l := range s.layers {
		if l.ParentLayerID != "" {
			children[l.ParentLayerID] = append(children[l.ParentLayerID], id)
		}
	}
	var out []string
	seen := map[string]bool{layerID: true}
	queue := []string{layerID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		kids := children[cur]
		sort.Strings(kids)
		for _, k := range kids {
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, k)
			queue = append(queue, k)
		}
	}
	return out
}

// LayerCounter returns the last number used for a default layer name.
func (s *Store) LayerCounter() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counter
}

// Snapshot returns a deep copy of the whole repository as a project.
func (s *Store) Snapshot() *domain.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := &domain.Project{
		ID:           s.projectID,
		TimelineID:   s.timelineID,
		RootLayerID:  s.rootID,
		LayerCounter: s.counter,
		Layers:       make(map[string]*domain.Layer, len(s.layers)),
		UpdatedAt:    s.now(),
	}
	for id, l := range s.layers {
		p.Layers[id] = l.Clone()
	}
	return p
}

// Load replaces the repository content with a copy of the project.
// The hierarchy must be acyclic; depths are recomputed from the root.
// A project without its root layer gets an empty one.
func (s *Store) Load(p *domain.Project) error {
	if p == nil {
		return fmt.Errorf("%w: nil project", domain.ErrProjectNotFound)
	}
	rootID := p.RootLayerID
	if rootID == "" {
		rootID = domain.RootLayerID
	}
	layers := make(map[string]*domain.Layer, len(p.Layers))
	for id, l := range p.Layers {
		layers[id] = l.Clone()
	}
	if _, ok := layers[rootID]; !ok {
		s.logger.Warn("project has no root layer, recreating", "project", p.ID, "root", rootID)
		layers[rootID] = domain.NewLayer(rootID, domain.RootLayerName, "", 0)
	}
	if err := CheckHierarchy(layers, rootID); err != nil {
		return err
	}
	recomputeDepths(layers, rootID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.projectID = p.ID
	s.timelineID = p.TimelineID
	s.rootID = rootID
	s.layers = layers
	s.counter = p.LayerCounter
	return nil
}

// CheckHierarchy verifies that every layer reaches rootID through its
// parent chain without revisiting a layer.
func CheckHierarchy(layers map[string]*domain.Layer, rootID string) error {
	for id := range layers {
		seen := make(map[string]bool)
		cur := id
		for cur != rootID {
			if seen[cur] {
				return fmt.Errorf("%w: layer %s", domain.ErrCycle, id)
			}
			seen[cur] = true
			l, ok := layers[cur]
			if !ok || l == nil {
				return fmt.Errorf("%w: %s (ancestor of %s)", domain.ErrLayerNotFound, cur, id)
			}
			if l.ParentLayerID == "" {
				return fmt.Errorf("%w: layer %s is detached from root %s", domain.ErrCycle, id, rootID)
			}
			cur = l.ParentLayerID
		}
	}
	return nil
}

func recomputeDepths(layers map[string]*domain.Layer, rootID string) {
	var depth func(id string) int
	memo := map[string]int{rootID: 0}
	depth = func(id string) int {
		if d, ok := memo[id]; ok {
			return d
		}
		d := depth(layers[id].ParentLayerID) + 1
		memo[id] = d
		return d
	}
	for id, l := range layers {
		l.Depth = depth(id)
	}
	layers[rootID].ParentLayerID = ""
}

// --- Node mutators ---

// AddNode inserts a copy of node into the layer.
// A layer-kind node whose layer is not materialized gets an empty one.
func (s *Store) AddNode(ctx context.Context, layerID string, node *domain.Node) error {
	if err := node.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	l, err := s.layerLocked(layerID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if _, exists := l.Nodes[node.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s in layer %s", domain.ErrDuplicateNode, node.ID, layerID)
	}

	n := node.Clone()
	syncFrom := layerID
	if n.IsLayer() {
		if err := s.attachLayerLocked(l, n); err != nil {
			s.mu.Unlock()
			return err
		}
		syncFrom = n.ID
	}
	l.PutNode(n)

	fx := &effects{}
	s.syncLocked(fx, syncFrom)
	s.mu.Unlock()

	s.logger.Debug("node added", "layer", layerID, "node", n.ID, "kind", n.Kind)
	s.flush(ctx, fx)
	return nil
}

// attachLayerLocked binds a layer node to its nested layer, materializing it if missing.
func (s *Store) attachLayerLocked(parent *domain.Layer, n *domain.Node) error {
	path, err := s.pathLocked(parent.ID)
	if err != nil {
		return err
	}
	for _, id := range path {
		if id == n.ID {
			return fmt.Errorf("%w: layer %s would contain itself", domain.ErrCycle, n.ID)
		}
	}
	n.Layer.ParentLayerID = parent.ID
	if n.Layer.StartingNodes == nil {
		n.Layer.StartingNodes = []domain.Port{}
	}
	if n.Layer.EndingNodes == nil {
		n.Layer.EndingNodes = []domain.Port{}
	}

	if nested, ok := s.layers[n.ID]; ok {
		if nested.ParentLayerID != parent.ID {
			return fmt.Errorf("%w: layer %s belongs to %s, not %s", domain.ErrInvalidNode, n.ID, nested.ParentLayerID, parent.ID)
		}
		return nil
	}
	nested := domain.NewLayer(n.ID, n.Layer.Name, parent.ID, parent.Depth+1)
	nested.Description = n.Layer.Description
	s.layers[n.ID] = nested
	return nil
}

// AddLayer materializes a new empty layer under parentLayerID and inserts its
// layer node there. An empty nodeID is generated; an empty name becomes
// "Layer {n}" with a monotonically increasing n.
func (s *Store) AddLayer(ctx context.Context, parentLayerID, nodeID string, at domain.Coordinates, name string) (*domain.Node, error) {
	if nodeID == "" {
		id, err := s.NewID()
		if err != nil {
			return nil, err
		}
		nodeID = id
	}

	s.mu.Lock()
	parent, err := s.layerLocked(parentLayerID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if _, exists := s.layers[nodeID]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateLayer, nodeID)
	}
	if _, exists := parent.Nodes[nodeID]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s in layer %s", domain.ErrDuplicateNode, nodeID, parentLayerID)
	}
	if name == "" {
		s.counter++
		name = fmt.Sprintf("%s %d", domain.DefaultLayerPrefix, s.counter)
	}

	n := domain.NewLayerNode(nodeID, at, name, parent.ID)
	s.layers[nodeID] = domain.NewLayer(nodeID, name, parent.ID, parent.Depth+1)
	parent.PutNode(n)

	fx := &effects{}
	s.syncLocked(fx, nodeID)
	out := n.Clone()
	s.mu.Unlock()

	s.logger.Debug("layer added", "parent", parentLayerID, "layer", nodeID, "name", name)
	s.flush(ctx, fx)
	return out, nil
}

// Removal is everything RemoveNode took out of the repository, enough for
// Restore to put it back.
type Removal struct {
	LayerID string
	Index   int
	Node    *domain.Node
	// Edges are the removed edges of the owning layer that touched the node.
	Edges []*domain.Edge
	// Layers are the removed descendant layers, parents before children.
	Layers []*domain.Layer
	// HandleEdges are edges of other layers that reached a removed node through a port handle.
	HandleEdges []LayerEdge
	// Ports are the port entries purged from layer nodes anywhere in the repository.
	Ports []PurgedPort
}

// LayerEdge is an edge together with the layer holding it.
type LayerEdge struct {
	LayerID string
	Edge    *domain.Edge
}

// PurgedPort is a port entry removed from a layer node.
type PurgedPort struct {
	LayerID string
	NodeID  string
	Ending  bool
	Index   int
	Port    domain.Port
}

// RemovedIDs returns the id of the removed node and of every node in the removed layers.
func (r *Removal) RemovedIDs() []string {
	ids := []string{r.Node.ID}
	for _, l := range r.Layers {
		ids = append(ids, l.NodeIDs...)
	}
	return ids
}

// RemoveNode deletes a node from the layer together with its edges. A layer
// node takes every descendant layer with it. Port entries referencing any
// removed node are purged from every layer of the repository.
func (s *Store) RemoveNode(ctx context.Context, layerID, nodeID string) (*Removal, error) {
	s.mu.Lock()
	l, err := s.layerLocked(layerID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	n, ok := l.Nodes[nodeID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s in layer %s", domain.ErrNodeNotFound, nodeID, layerID)
	}

	r := &Removal{LayerID: layerID, Node: n.Clone()}
	for i, id := range l.NodeIDs {
		if id == nodeID {
			r.Index = i
			break
		}
	}

	// Node ids are only unique within a layer, so removed ids are kept per
	// owning layer. A handle names a port of the layer node at the edge end.
	removed := map[string]bool{nodeID: true}
	owned := map[string]map[string]bool{layerID: {nodeID: true}}
	var doomed []string
	if n.IsLayer() {
		if _, ok := s.layers[nodeID]; ok {
			doomed = append([]string{nodeID}, s.descendantsLocked(nodeID)...)
		}
		for _, id := range doomed {
			ids := make(map[string]bool, len(s.layers[id].NodeIDs))
			for _, nid := range s.layers[id].NodeIDs {
				removed[nid] = true
				ids[nid] = true
			}
			owned[id] = ids
		}
	}
	doomedSet := make(map[string]bool, len(doomed))
	for _, id := range doomed {
		doomedSet[id] = true
	}

	for _, e := range l.EdgesOf(nodeID) {
		r.Edges = append(r.Edges, e.Clone())
		s.deleteEdgeLocked(l, e)
	}

	touched := []string{layerID}
	for _, lid := range sortedKeys(s.layers) {
		if doomedSet[lid] {
			continue
		}
		other := s.layers[lid]
		hit := false
		for _, eid := range other.EdgeIDs() {
			e := other.Edges[eid]
			if owned[e.StartNodeID][e.SourceHandle.ID()] || owned[e.EndNodeID][e.TargetHandle.ID()] {
				r.HandleEdges = append(r.HandleEdges, LayerEdge{LayerID: lid, Edge: e.Clone()})
				s.deleteEdgeLocked(other, e)
				hit = true
			}
		}
		if hit && lid != layerID {
			touched = append(touched, lid)
		}
	}

	for _, id := range doomed {
		r.Layers = append(r.Layers, s.layers[id].Clone())
		delete(s.layers, id)
	}
	l.DeleteNode(nodeID)

	r.Ports = s.purgePortsLocked(removed)

	fx := &effects{}
	s.syncLocked(fx, touched...)
	s.mu.Unlock()

	s.logger.Debug("node removed", "layer", layerID, "node", nodeID,
		"edges", len(r.Edges), "layers", len(r.Layers), "ports", len(r.Ports))
	s.flush(ctx, fx)
	return r, nil
}

// purgePortsLocked drops port entries whose id was removed. A port stays when
// the layer node's own nested layer still holds a node with that id.
func (s *Store) purgePortsLocked(removed map[string]bool) []PurgedPort {
	var out []PurgedPort
	for _, lid := range sortedKeys(s.layers) {
		l := s.layers[lid]
		for _, n := range l.OrderedNodes() {
			if !n.IsLayer() {
				continue
			}
			nested := s.layers[n.ID]
			keep := func(p domain.Port) bool {
				if !removed[p.ID] {
					return true
				}
				if nested != nil {
					if _, ok := nested.Nodes[p.ID]; ok {
						return true
					}
				}
				return false
			}
			for _, ending := range []bool{false, true} {
				list := &n.Layer.StartingNodes
				if ending {
					list = &n.Layer.EndingNodes
				}
				kept := make([]domain.Port, 0, len(*list))
				for i, p := range *list {
					if keep(p) {
						kept = append(kept, p)
						continue
					}
					out = append(out, PurgedPort{
						LayerID: lid,
						NodeID:  n.ID,
						Ending:  ending,
						Index:   i,
						Port:    domain.ClonePort(p, domain.Identity),
					})
				}
				*list = kept
			}
		}
	}
	return out
}

// Restore puts back what RemoveNode took out.
func (s *Store) Restore(ctx context.Context, r *Removal) error {
	if r == nil || r.Node == nil {
		return fmt.Errorf("%w: empty removal", domain.ErrInvalidNode)
	}

	s.mu.Lock()
	l, err := s.layerLocked(r.LayerID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if _, exists := l.Nodes[r.Node.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s in layer %s", domain.ErrDuplicateNode, r.Node.ID, r.LayerID)
	}
	for _, layer := range r.Layers {
		if _, exists := s.layers[layer.ID]; exists {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s", domain.ErrDuplicateLayer, layer.ID)
		}
	}

	touched := []string{r.LayerID}
	for _, layer := range r.Layers {
		s.layers[layer.ID] = layer.Clone()
		touched = append(touched, layer.ID)
	}
	insertNodeAt(l, r.Node.Clone(), r.Index)
	for _, e := range r.Edges {
		c := e.Clone()
		l.Edges[c.ID] = c
		s.markPortsLocked(l, c, true)
	}
	for _, pp := range r.Ports {
		owner, ok := s.layers[pp.LayerID]
		if !ok {
			continue
		}
		n, ok := owner.Nodes[pp.NodeID]
		if !ok || !n.IsLayer() {
			continue
		}
		list := &n.Layer.StartingNodes
		if pp.Ending {
			list = &n.Layer.EndingNodes
		}
		if domain.FindPort(*list, pp.Port.ID) >= 0 {
			continue
		}
		*list = insertPortAt(*list, domain.ClonePort(pp.Port, domain.Identity), pp.Index)
	}
	for _, he := range r.HandleEdges {
		other, ok := s.layers[he.LayerID]
		if !ok {
			continue
		}
		if _, exists := other.Edges[he.Edge.ID]; exists {
			continue
		}
		c := he.Edge.Clone()
		other.Edges[c.ID] = c
		s.markPortsLocked(other, c, true)
		touched = append(touched, he.LayerID)
	}
	sortByDepthDesc(s.layers, touched)

	fx := &effects{}
	s.syncLocked(fx, touched...)
	s.mu.Unlock()

	s.logger.Debug("node restored", "layer", r.LayerID, "node", r.Node.ID, "layers", len(r.Layers))
	s.flush(ctx, fx)
	return nil
}

// MoveNode repositions a node and returns its previous coordinates.
func (s *Store) MoveNode(ctx context.Context, layerID, nodeID string, to domain.Coordinates) (domain.Coordinates, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.layerLocked(layerID)
	if err != nil {
		return domain.Coordinates{}, err
	}
	n, ok := l.Nodes[nodeID]
	if !ok {
		return domain.Coordinates{}, fmt.Errorf("%w: %s in layer %s", domain.ErrNodeNotFound, nodeID, layerID)
	}
	old := n.Coordinates
	n.Coordinates = to
	return old, nil
}

// UpdateNodeData replaces the payload of a narrative, choice or note node and
// returns the previous payload.
func (s *Store) UpdateNodeData(ctx context.Context, layerID, nodeID string, data domain.NodeData) (domain.NodeData, error) {
	s.mu.Lock()
	l, err := s.layerLocked(layerID)
	if err != nil {
		s.mu.Unlock()
		return domain.NodeData{}, err
	}
	n, ok := l.Nodes[nodeID]
	if !ok {
		s.mu.Unlock()
		return domain.NodeData{}, fmt.Errorf("%w: %s in layer %s", domain.ErrNodeNotFound, nodeID, layerID)
	}
	var old domain.NodeData
	switch n.Kind {
	case domain.KindNarrative, domain.KindChoice, domain.KindNote:
		old = *n.Data
		d := data
		n.Data = &d
	case domain.KindLayer:
		s.mu.Unlock()
		return domain.NodeData{}, fmt.Errorf("%w: layer node %s has no node data", domain.ErrInvalidNode, nodeID)
	}

	fx := &effects{}
	s.syncLocked(fx, layerID)
	s.mu.Unlock()

	s.flush(ctx, fx)
	return old, nil
}

// UpdateLayerInfo renames a layer. Both the layer and its layer node change.
// It returns the previous name and description.
func (s *Store) UpdateLayerInfo(ctx context.Context, layerID, name, description string) (string, string, error) {
	s.mu.Lock()
	l, err := s.layerLocked(layerID)
	if err != nil {
		s.mu.Unlock()
		return "", "", err
	}
	oldName, oldDesc := l.Name, l.Description
	l.Name, l.Description = name, description

	fx := &effects{}
	if parent, ok := s.layers[l.ParentLayerID]; ok {
		if n, ok := parent.Nodes[layerID]; ok && n.IsLayer() {
			n.Layer.Name, n.Layer.Description = name, description
		}
		s.syncLocked(fx, parent.ID)
	}
	s.mu.Unlock()

	s.logger.Debug("layer updated", "layer", layerID, "name", name)
	s.flush(ctx, fx)
	return oldName, oldDesc, nil
}

// --- Edge mutators ---

// ConnectParams describes a connection request. An empty ID is generated.
type ConnectParams struct {
	ID           string
	Source       string
	Target       string
	SourceHandle string
	TargetHandle string
	Conditions   []domain.ConditionGroup
}

// Connect creates an edge and returns its id.
func (s *Store) Connect(ctx context.Context, layerID string, p ConnectParams) (string, error) {
	id := p.ID
	if id == "" {
		var err error
		if id, err = s.NewID(); err != nil {
			return "", err
		}
	}
	e := &domain.Edge{
		ID:           id,
		StartNodeID:  p.Source,
		EndNodeID:    p.Target,
		SourceHandle: domain.Ref(p.SourceHandle),
		TargetHandle: domain.Ref(p.TargetHandle),
		Conditions:   domain.CloneConditions(p.Conditions),
	}
	if e.Conditions == nil {
		e.Conditions = []domain.ConditionGroup{}
	}
	if err := s.AddEdge(ctx, layerID, e); err != nil {
		return "", err
	}
	return id, nil
}

// AddEdge inserts a copy of the edge. Duplicates over
// (start, end, sourceHandle, targetHandle) and choice-to-choice edges are
// rejected. Ports the edge attaches to are marked connected.
func (s *Store) AddEdge(ctx context.Context, layerID string, edge *domain.Edge) error {
	s.mu.Lock()
	l, err := s.layerLocked(layerID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if err := validateEdgeLocked(l, edge); err != nil {
		s.mu.Unlock()
		return err
	}
	e := edge.Clone()
	l.Edges[e.ID] = e
	s.markPortsLocked(l, e, true)

	fx := &effects{}
	s.syncLocked(fx, layerID)
	s.mu.Unlock()

	s.logger.Debug("edge added", "layer", layerID, "edge", e.ID, "from", e.StartNodeID, "to", e.EndNodeID)
	s.flush(ctx, fx)
	return nil
}

func validateEdgeLocked(l *domain.Layer, e *domain.Edge) error {
	if e == nil || e.ID == "" {
		return fmt.Errorf("%w: missing id", domain.ErrInvalidEdge)
	}
	if _, exists := l.Edges[e.ID]; exists {
		return fmt.Errorf("%w: id %s", domain.ErrDuplicateEdge, e.ID)
	}
	start, ok := l.Nodes[e.StartNodeID]
	if !ok {
		return fmt.Errorf("%w: start %s: %w", domain.ErrInvalidEdge, e.StartNodeID, domain.ErrNodeNotFound)
	}
	end, ok := l.Nodes[e.EndNodeID]
	if !ok {
		return fmt.Errorf("%w: end %s: %w", domain.ErrInvalidEdge, e.EndNodeID, domain.ErrNodeNotFound)
	}
	if start.Kind == domain.KindChoice && end.Kind == domain.KindChoice {
		return fmt.Errorf("%w: %s -> %s", domain.ErrChoiceToChoice, start.ID, end.ID)
	}
	if h := e.SourceHandle.ID(); h != "" {
		if !start.IsLayer() || domain.FindPort(start.Layer.EndingNodes, h) < 0 {
			return fmt.Errorf("%w: %s has no ending port %s", domain.ErrInvalidEdge, start.ID, h)
		}
	}
	if h := e.TargetHandle.ID(); h != "" {
		if !end.IsLayer() || domain.FindPort(end.Layer.StartingNodes, h) < 0 {
			return fmt.Errorf("%w: %s has no starting port %s", domain.ErrInvalidEdge, end.ID, h)
		}
	}
	if dup, ok := l.FindEdge(e.Key()); ok {
		return fmt.Errorf("%w: %s already links %s -> %s", domain.ErrDuplicateEdge, dup.ID, e.StartNodeID, e.EndNodeID)
	}
	return nil
}

// RemoveEdge deletes an edge and returns it.
func (s *Store) RemoveEdge(ctx context.Context, layerID, edgeID string) (*domain.Edge, error) {
	s.mu.Lock()
	l, err := s.layerLocked(layerID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	e, ok := l.Edges[edgeID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s in layer %s", domain.ErrEdgeNotFound, edgeID, layerID)
	}
	out := e.Clone()
	s.deleteEdgeLocked(l, e)

	fx := &effects{}
	s.syncLocked(fx, layerID)
	s.mu.Unlock()

	s.logger.Debug("edge removed", "layer", layerID, "edge", edgeID)
	s.flush(ctx, fx)
	return out, nil
}

// UpdateEdgeConditions replaces the conditions of an edge and returns the previous ones.
func (s *Store) UpdateEdgeConditions(ctx context.Context, layerID, edgeID string, groups []domain.ConditionGroup) ([]domain.ConditionGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.layerLocked(layerID)
	if err != nil {
		return nil, err
	}
	e, ok := l.Edges[edgeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s in layer %s", domain.ErrEdgeNotFound, edgeID, layerID)
	}
	old := e.Conditions
	e.Conditions = domain.CloneConditions(groups)
	return old, nil
}

func (s *Store) deleteEdgeLocked(l *domain.Layer, e *domain.Edge) {
	s.markPortsLocked(l, e, false)
	delete(l.Edges, e.ID)
}

// markPortsLocked records (or forgets) the edge on the ports it attaches to.
func (s *Store) markPortsLocked(l *domain.Layer, e *domain.Edge, connect bool) {
	if h := e.SourceHandle.ID(); h != "" {
		if n, ok := l.Nodes[e.StartNodeID]; ok && n.IsLayer() {
			setConnection(n.Layer.EndingNodes, h, e.ID, connect)
		}
	}
	if h := e.TargetHandle.ID(); h != "" {
		if n, ok := l.Nodes[e.EndNodeID]; ok && n.IsLayer() {
			setConnection(n.Layer.StartingNodes, h, e.ID, connect)
		}
	}
}

func setConnection(list []domain.Port, portID, edgeID string, connect bool) {
	i := domain.FindPort(list, portID)
	if i < 0 {
		return
	}
	p := &list[i]
	at := -1
	for j, id := range p.ConnectionIDs {
		if id == edgeID {
			at = j
			break
		}
	}
	switch {
	case connect && at < 0:
		p.ConnectionIDs = append(p.ConnectionIDs, edgeID)
	case !connect && at >= 0:
		p.ConnectionIDs = append(p.ConnectionIDs[:at:at], p.ConnectionIDs[at+1:]...)
	}
	p.IsConnected = len(p.ConnectionIDs) > 0
}

// --- Layer materialization ---

// RestoreLayer materializes a full layer (content included) under its
// ParentLayerID, which must already exist. Its depth is recomputed.
// The layer node is not inserted; callers add it and then Resync.
func (s *Store) RestoreLayer(layer *domain.Layer) error {
	if layer == nil || layer.ID == "" {
		return fmt.Errorf("%w: empty layer", domain.ErrLayerNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.layers[layer.ID]; exists || layer.ID == s.rootID {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateLayer, layer.ID)
	}
	parent, ok := s.layers[layer.ParentLayerID]
	if !ok {
		return fmt.Errorf("%w: parent %s of %s", domain.ErrLayerNotFound, layer.ParentLayerID, layer.ID)
	}
	path, err := s.pathLocked(parent.ID)
	if err != nil {
		return err
	}
	ancestors := make(map[string]bool, len(path)+1)
	for _, id := range path {
		ancestors[id] = true
	}
	ancestors[layer.ID] = true
	for _, n := range layer.Nodes {
		if n.IsLayer() && ancestors[n.ID] {
			return fmt.Errorf("%w: layer %s nests its ancestor %s", domain.ErrCycle, layer.ID, n.ID)
		}
	}

	c := layer.Clone()
	c.Depth = parent.Depth + 1
	for _, n := range c.Nodes {
		if n.IsLayer() {
			n.Layer.ParentLayerID = c.ID
		}
	}
	s.layers[c.ID] = c
	s.logger.Debug("layer restored", "layer", c.ID, "parent", parent.ID, "nodes", len(c.Nodes))
	return nil
}

// RemoveLayerTree deletes a layer and all its descendants from the repository,
// leaving the owning layer node in place. It returns the removed layers,
// parents first.
func (s *Store) RemoveLayerTree(layerID string) ([]*domain.Layer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if layerID == s.rootID {
		return nil, fmt.Errorf("%w: the root layer cannot be removed", domain.ErrInvalidNode)
	}
	if _, ok := s.layers[layerID]; !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrLayerNotFound, layerID)
	}
	ids := append([]string{layerID}, s.descendantsLocked(layerID)...)
	out := make([]*domain.Layer, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.layers[id])
		delete(s.layers, id)
	}
	return out, nil
}

// Resync recomputes the ports of the given layers and their ancestors.
func (s *Store) Resync(ctx context.Context, layerIDs ...string) {
	s.mu.Lock()
	ids := append([]string(nil), layerIDs...)
	sortByDepthDesc(s.layers, ids)
	fx := &effects{}
	s.syncLocked(fx, ids...)
	s.mu.Unlock()
	s.flush(ctx, fx)
}

// --- Operations ---

// Emit stamps and forwards an operation record to the sink.
// Sink failures are logged; the in-memory state is already committed.
func (s *Store) Emit(ctx context.Context, typ domain.OpType, layerID string, payload map[string]any) {
	s.mu.RLock()
	op := s.opLocked(typ, layerID, payload)
	s.mu.RUnlock()
	s.flush(ctx, &effects{ops: []domain.Operation{op}})
}

func (s *Store) opLocked(typ domain.OpType, layerID string, payload map[string]any) domain.Operation {
	return domain.Operation{
		Type:       typ,
		Payload:    payload,
		ProjectID:  s.projectID,
		TimelineID: s.timelineID,
		LayerID:    layerID,
		Timestamp:  s.now(),
	}
}

// effects collects records produced under the lock, delivered after unlocking.
type effects struct {
	ops    []domain.Operation
	events []*domain.PortsEvent
}

func (s *Store) flush(ctx context.Context, fx *effects) {
	for _, op := range fx.ops {
		if err := s.sink.Emit(ctx, op); err != nil {
			s.logger.Warn("failed to emit operation", "op", op.Type, "layer", op.LayerID, "error", err)
		}
	}
	if s.hooks.OnPortsSynced != nil {
		for _, ev := range fx.events {
			s.hooks.OnPortsSynced(ctx, ev)
		}
	}
}

// --- helpers ---

// layerLocked resolves a layer, recreating the root if it went missing.
func (s *Store) layerLocked(layerID string) (*domain.Layer, error) {
	if l, ok := s.layers[layerID]; ok {
		return l, nil
	}
	if layerID == s.rootID {
		return s.ensureRoot(), nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrLayerNotFound, layerID)
}

func (s *Store) ensureRoot() *domain.Layer {
	if l, ok := s.layers[s.rootID]; ok {
		return l
	}
	s.logger.Warn("root layer missing, recreating", "root", s.rootID)
	l := domain.NewLayer(s.rootID, domain.RootLayerName, "", 0)
	s.layers[s.rootID] = l
	return l
}

func insertNodeAt(l *domain.Layer, n *domain.Node, index int) {
	l.Nodes[n.ID] = n
	if index < 0 || index > len(l.NodeIDs) {
		index = len(l.NodeIDs)
	}
	l.NodeIDs = append(l.NodeIDs, "")
	copy(l.NodeIDs[index+1:], l.NodeIDs[index:])
	l.NodeIDs[index] = n.ID
}

func insertPortAt(list []domain.Port, p domain.Port, index int) []domain.Port {
	if index < 0 || index > len(list) {
		index = len(list)
	}
	list = append(list, domain.Port{})
	copy(list[index+1:], list[index:])
	list[index] = p
	return list
}

func sortedKeys(m map[string]*domain.Layer) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// sortByDepthDesc orders ids deepest first; unknown ids go last.
func sortByDepthDesc(layers map[string]*domain.Layer, ids []string) {
	depth := func(id string) int {
		if l, ok := layers[id]; ok {
			return l.Depth
		}
		return -1
	}
	sort.SliceStable(ids, func(i, j int) bool { return depth(ids[i]) > depth(ids[j]) })
}
