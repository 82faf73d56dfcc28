package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goflowspace/goflow"
	"github.com/goflowspace/goflow/internal/logging"
	"github.com/goflowspace/goflow/pkg/adapters/memory"
	"github.com/goflowspace/goflow/pkg/domain"
	"github.com/goflowspace/goflow/pkg/graph"
	"github.com/goflowspace/goflow/pkg/observability"
	"github.com/goflowspace/goflow/pkg/schema"
	"github.com/goflowspace/goflow/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
)

// Server exposes the editing sessions of a session.Manager as a JSON API.
// Every mutating request names the layer it is issued from, which becomes
// the editor view before the command runs.
type Server struct {
	Manager   *session.Manager
	Streams   *StreamManager
	Notifiers *memory.Notifiers

	metrics  *observability.Metrics
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithStreams shares a StreamManager that editors also emit into.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithNotifiers sets where per-project notices are collected. The same set
// must feed the editors' notifiers (see session.WithProjectOptions).
func WithNotifiers(n *memory.Notifiers) Option {
	return func(s *Server) {
		s.Notifiers = n
	}
}

// WithMetrics records request metrics into m and serves g on /metrics.
func WithMetrics(m *observability.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates the HTTP handler.
func NewHandler(mgr *session.Manager, opts ...Option) http.Handler {
	s := &Server{Manager: mgr, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.logger)
	}
	if s.Notifiers == nil {
		s.Notifiers = memory.NewNotifiers()
	}

	r := chi.NewRouter()
	r.Use(s.instrument)
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.gatherer != nil {
		r.Handle("/metrics", observability.Handler(s.gatherer))
	}

	r.Route("/projects", func(r chi.Router) {
		r.Get("/", s.ListProjects)
		r.Route("/{projectID}", func(r chi.Router) {
			r.Get("/", s.GetProject)
			r.Put("/", s.CreateProject)
			r.Delete("/", s.DeleteProject)
			r.Get("/events", s.SubscribeEvents)
			r.Get("/layers/{layerID}", s.GetLayer)
			r.Patch("/layers/{layerID}", s.UpdateLayer)
			r.Get("/layers/{layerID}/path", s.GetLayerPath)
			r.Post("/nodes", s.AddNode)
			r.Post("/layers", s.AddLayer)
			r.Patch("/nodes/{nodeID}", s.UpdateNode)
			r.Post("/nodes/delete", s.DeleteNodes)
			r.Post("/nodes/duplicate", s.DuplicateNodes)
			r.Post("/edges", s.Connect)
			r.Delete("/edges/{edgeID}", s.DeleteEdge)
			r.Put("/edges/{edgeID}/conditions", s.EditConditions)
			r.Post("/undo", s.Undo)
			r.Post("/redo", s.Redo)
		})
	})
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// instrument records request counts and latency by route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		s.logger.Debug("request", "method", r.Method, "route", route, "status", rec.status, "duration", time.Since(start))
		if s.metrics != nil {
			s.metrics.Requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			s.metrics.Latency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		}
	})
}

// Response wraps every successful editing result with the notices the
// editor raised while handling the request.
type Response struct {
	Result  any             `json:"result,omitempty"`
	Notices []memory.Notice `json:"notices,omitempty"`
}

type errorResponse struct {
	Error   string          `json:"error"`
	Fields  []string        `json:"fields,omitempty"`
	Notices []memory.Notice `json:"notices,omitempty"`
}

// statusFor maps sentinel errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrProjectNotFound),
		errors.Is(err, domain.ErrLayerNotFound),
		errors.Is(err, domain.ErrNodeNotFound),
		errors.Is(err, domain.ErrEdgeNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateEdge),
		errors.Is(err, domain.ErrDuplicateNode),
		errors.Is(err, domain.ErrDuplicateLayer),
		errors.Is(err, domain.ErrCommandSkipped):
		return http.StatusConflict
	case errors.Is(err, domain.ErrChoiceToChoice),
		errors.Is(err, domain.ErrInvalidNode),
		errors.Is(err, domain.ErrInvalidEdge),
		errors.Is(err, domain.ErrEmptySelection),
		errors.Is(err, domain.ErrCycle),
		len(schema.ValidationErrors(err)) > 0:
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) fail(w http.ResponseWriter, projectID string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "project_id", projectID, "err", err)
	}
	resp := errorResponse{Error: err.Error()}
	for _, fe := range schema.ValidationErrors(err) {
		resp.Fields = append(resp.Fields, fe.Error())
	}
	if projectID != "" {
		resp.Notices = s.Notifiers.For(projectID).Drain()
	}
	writeJSON(w, status, resp)
}

func (s *Server) ok(w http.ResponseWriter, projectID string, status int, result any) {
	writeJSON(w, status, Response{Result: result, Notices: s.Notifiers.For(projectID).Drain()})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", errBadRequest, err)
	}
	return nil
}

var errBadRequest = errors.New("bad request")

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	s.logger.Warn("invalid request body", "err", err)
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
}

// edit runs fn from the layer the client is looking at and saves the project.
func (s *Server) edit(w http.ResponseWriter, r *http.Request, layerID string, status int, fn func(context.Context, *goflow.Editor) (any, error)) {
	projectID := chi.URLParam(r, "projectID")
	var result any
	err := s.Manager.Edit(r.Context(), projectID, func(ctx context.Context, ed *goflow.Editor) error {
		if layerID != "" {
			if err := ed.Navigate(layerID); err != nil {
				return err
			}
		}
		var err error
		result, err = fn(ctx, ed)
		return err
	})
	if err != nil {
		s.fail(w, projectID, err)
		return
	}
	s.ok(w, projectID, status, result)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "goflow-http",
		"version": goflow.Version,
	})
}

// ListProjects handles GET /projects.
func (s *Server) ListProjects(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Manager.List(r.Context())
	if err != nil {
		s.fail(w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Result: ids})
}

// CreateProject handles PUT /projects/{projectID}. It is idempotent.
func (s *Server) CreateProject(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	p, err := s.Manager.LoadOrCreate(r.Context(), projectID)
	if err != nil {
		s.fail(w, projectID, err)
		return
	}
	s.ok(w, projectID, http.StatusOK, p)
}

// GetProject handles GET /projects/{projectID}.
func (s *Server) GetProject(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	p, err := s.Manager.Load(r.Context(), projectID)
	if err != nil {
		s.fail(w, projectID, err)
		return
	}
	s.ok(w, projectID, http.StatusOK, p)
}

// DeleteProject handles DELETE /projects/{projectID}.
func (s *Server) DeleteProject(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if err := s.Manager.Delete(r.Context(), projectID); err != nil {
		s.fail(w, projectID, err)
		return
	}
	s.Notifiers.Forget(projectID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) view(w http.ResponseWriter, r *http.Request, fn func(*goflow.Editor) (any, error)) {
	projectID := chi.URLParam(r, "projectID")
	var result any
	err := s.Manager.View(r.Context(), projectID, func(_ context.Context, ed *goflow.Editor) error {
		var err error
		result, err = fn(ed)
		return err
	})
	if err != nil {
		s.fail(w, projectID, err)
		return
	}
	s.ok(w, projectID, http.StatusOK, result)
}

// GetLayer handles GET /projects/{projectID}/layers/{layerID}.
func (s *Server) GetLayer(w http.ResponseWriter, r *http.Request) {
	s.view(w, r, func(ed *goflow.Editor) (any, error) {
		return ed.Store().Layer(chi.URLParam(r, "layerID"))
	})
}

// GetLayerPath handles GET /projects/{projectID}/layers/{layerID}/path.
func (s *Server) GetLayerPath(w http.ResponseWriter, r *http.Request) {
	s.view(w, r, func(ed *goflow.Editor) (any, error) {
		return ed.Store().Path(chi.URLParam(r, "layerID"))
	})
}

type updateLayerRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// UpdateLayer handles PATCH /projects/{projectID}/layers/{layerID}.
func (s *Server) UpdateLayer(w http.ResponseWriter, r *http.Request) {
	var req updateLayerRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	layerID := chi.URLParam(r, "layerID")
	s.edit(w, r, "", http.StatusOK, func(ctx context.Context, ed *goflow.Editor) (any, error) {
		// The view is the layer's parent, where its node lives.
		l, err := ed.Store().Layer(layerID)
		if err != nil {
			return nil, err
		}
		if l.ParentLayerID != "" {
			if err := ed.Navigate(l.ParentLayerID); err != nil {
				return nil, err
			}
		}
		return nil, ed.UpdateLayerInfo(ctx, layerID, req.Name, req.Description)
	})
}

type addNodeRequest struct {
	LayerID string       `json:"layerId"`
	Node    *domain.Node `json:"node"`
}

// AddNode handles POST /projects/{projectID}/nodes.
func (s *Server) AddNode(w http.ResponseWriter, r *http.Request) {
	var req addNodeRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	if req.Node == nil {
		s.badRequest(w, fmt.Errorf("%w: node is required", errBadRequest))
		return
	}
	s.edit(w, r, req.LayerID, http.StatusCreated, func(ctx context.Context, ed *goflow.Editor) (any, error) {
		id, err := ed.AddNode(ctx, req.Node)
		return map[string]string{"id": id}, err
	})
}

type addLayerRequest struct {
	LayerID     string             `json:"layerId"`
	Name        string             `json:"name"`
	Coordinates domain.Coordinates `json:"coordinates"`
}

// AddLayer handles POST /projects/{projectID}/layers.
func (s *Server) AddLayer(w http.ResponseWriter, r *http.Request) {
	var req addLayerRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	s.edit(w, r, req.LayerID, http.StatusCreated, func(ctx context.Context, ed *goflow.Editor) (any, error) {
		id, err := ed.AddLayer(ctx, req.Coordinates, req.Name)
		return map[string]string{"id": id}, err
	})
}

type updateNodeRequest struct {
	LayerID     string              `json:"layerId"`
	Coordinates *domain.Coordinates `json:"coordinates,omitempty"`
	Data        *domain.NodeData    `json:"data,omitempty"`
}

// UpdateNode handles PATCH /projects/{projectID}/nodes/{nodeID}.
// A move and a data edit in one request are two undo entries.
func (s *Server) UpdateNode(w http.ResponseWriter, r *http.Request) {
	var req updateNodeRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	nodeID := chi.URLParam(r, "nodeID")
	s.edit(w, r, req.LayerID, http.StatusOK, func(ctx context.Context, ed *goflow.Editor) (any, error) {
		if req.Coordinates != nil {
			if err := ed.MoveNode(ctx, nodeID, *req.Coordinates); err != nil {
				return nil, err
			}
		}
		if req.Data != nil {
			if err := ed.EditNode(ctx, nodeID, *req.Data); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
}

type selectionRequest struct {
	LayerID string   `json:"layerId"`
	IDs     []string `json:"ids"`
}

// DeleteNodes handles POST /projects/{projectID}/nodes/delete.
func (s *Server) DeleteNodes(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	s.edit(w, r, req.LayerID, http.StatusOK, func(ctx context.Context, ed *goflow.Editor) (any, error) {
		return nil, ed.Delete(ctx, req.IDs...)
	})
}

// DuplicateNodes handles POST /projects/{projectID}/nodes/duplicate.
func (s *Server) DuplicateNodes(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	s.edit(w, r, req.LayerID, http.StatusCreated, func(ctx context.Context, ed *goflow.Editor) (any, error) {
		ids, err := ed.Duplicate(ctx, req.IDs...)
		return map[string][]string{"ids": ids}, err
	})
}

type connectRequest struct {
	LayerID      string                  `json:"layerId"`
	Source       string                  `json:"source"`
	Target       string                  `json:"target"`
	SourceHandle string                  `json:"sourceHandle,omitempty"`
	TargetHandle string                  `json:"targetHandle,omitempty"`
	Conditions   []domain.ConditionGroup `json:"conditions,omitempty"`
}

// Connect handles POST /projects/{projectID}/edges.
func (s *Server) Connect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	s.edit(w, r, req.LayerID, http.StatusCreated, func(ctx context.Context, ed *goflow.Editor) (any, error) {
		id, err := ed.Connect(ctx, graph.ConnectParams{
			Source:       req.Source,
			Target:       req.Target,
			SourceHandle: req.SourceHandle,
			TargetHandle: req.TargetHandle,
			Conditions:   req.Conditions,
		})
		return map[string]string{"id": id}, err
	})
}

// DeleteEdge handles DELETE /projects/{projectID}/edges/{edgeID}?layerId=.
func (s *Server) DeleteEdge(w http.ResponseWriter, r *http.Request) {
	edgeID := chi.URLParam(r, "edgeID")
	s.edit(w, r, r.URL.Query().Get("layerId"), http.StatusOK, func(ctx context.Context, ed *goflow.Editor) (any, error) {
		return nil, ed.DeleteEdge(ctx, edgeID)
	})
}

type conditionsRequest struct {
	LayerID    string                  `json:"layerId"`
	Conditions []domain.ConditionGroup `json:"conditions"`
}

// EditConditions handles PUT /projects/{projectID}/edges/{edgeID}/conditions.
func (s *Server) EditConditions(w http.ResponseWriter, r *http.Request) {
	var req conditionsRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	edgeID := chi.URLParam(r, "edgeID")
	s.edit(w, r, req.LayerID, http.StatusOK, func(ctx context.Context, ed *goflow.Editor) (any, error) {
		return nil, ed.EditConditions(ctx, edgeID, req.Conditions)
	})
}

type historyRequest struct {
	LayerID string `json:"layerId"`
}

type historyResult struct {
	Applied bool `json:"applied"`
	CanUndo bool `json:"canUndo"`
	CanRedo bool `json:"canRedo"`
}

func (s *Server) history(w http.ResponseWriter, r *http.Request, undo bool) {
	var req historyRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	s.edit(w, r, req.LayerID, http.StatusOK, func(ctx context.Context, ed *goflow.Editor) (any, error) {
		step := ed.Redo
		if undo {
			step = ed.Undo
		}
		applied, err := step(ctx)
		return historyResult{Applied: applied, CanUndo: ed.CanUndo(), CanRedo: ed.CanRedo()}, err
	})
}

// Undo handles POST /projects/{projectID}/undo. A refused undo answers 200
// with applied=false and a notice pointing at the right layer.
func (s *Server) Undo(w http.ResponseWriter, r *http.Request) { s.history(w, r, true) }

// Redo handles POST /projects/{projectID}/redo.
func (s *Server) Redo(w http.ResponseWriter, r *http.Request) { s.history(w, r, false) }

// SubscribeEvents handles GET /projects/{projectID}/events (SSE).
// Each operation record of the project is sent as one "operation" event.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	projectID := chi.URLParam(r, "projectID")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, unsubscribe := s.Streams.Subscribe(projectID)
	defer unsubscribe()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg := <-ch:
			fmt.Fprintf(w, "event: operation\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
