package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/goflowspace/goflow"
	"github.com/goflowspace/goflow/internal/logging"
	"github.com/goflowspace/goflow/pkg/adapters/memory"
	"github.com/goflowspace/goflow/pkg/domain"
	"github.com/goflowspace/goflow/pkg/graph"
	"github.com/goflowspace/goflow/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ProjectsURI is the resource listing the stored projects.
const ProjectsURI = "goflow://projects"

// Result is the structured output of every editing tool.
type Result struct {
	IDs     []string        `json:"ids,omitempty" jsonschema_description:"Identifiers created by the call"`
	Applied bool            `json:"applied" jsonschema_description:"Whether the call changed the project"`
	CanUndo bool            `json:"canUndo" jsonschema_description:"Whether an undo is available from the current layer"`
	CanRedo bool            `json:"canRedo" jsonschema_description:"Whether a redo is available from the current layer"`
	Notices []memory.Notice `json:"notices,omitempty" jsonschema_description:"Messages raised by the editor"`
}

// Scope names the project and the layer a tool call is issued from.
type Scope struct {
	ProjectID string `json:"project_id"`
	LayerID   string `json:"layer_id,omitempty"`
}

// AddNodeArgs are the arguments of add_node.
type AddNodeArgs struct {
	Scope
	Kind  string  `json:"kind"`
	Text  string  `json:"text,omitempty"`
	Title string  `json:"title,omitempty"`
	X     float64 `json:"x,omitempty"`
	Y     float64 `json:"y,omitempty"`
}

// AddLayerArgs are the arguments of add_layer.
type AddLayerArgs struct {
	Scope
	Name string  `json:"name,omitempty"`
	X    float64 `json:"x,omitempty"`
	Y    float64 `json:"y,omitempty"`
}

// ConnectArgs are the arguments of connect.
type ConnectArgs struct {
	Scope
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"source_handle,omitempty"`
	TargetHandle string `json:"target_handle,omitempty"`
}

// SelectionArgs are the arguments of delete_nodes and duplicate_nodes.
type SelectionArgs struct {
	Scope
	IDs []string `json:"ids"`
}

// Server exposes goflow editing sessions as MCP tools.
type Server struct {
	manager   *session.Manager
	notifiers *memory.Notifiers
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance. notifiers must be the set the
// manager's editors report into (see session.WithProjectOptions).
func NewServer(mgr *session.Manager, notifiers *memory.Notifiers, opts ...Option) *Server {
	s := &Server{
		manager:   mgr,
		notifiers: notifiers,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("goflow-mcp", goflow.Version, server.WithToolCapabilities(true)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifiers == nil {
		s.notifiers = memory.NewNotifiers()
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and blocks until ctx
// is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", s.corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", s.corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("CORS middleware", "method", r.Method, "path", r.URL.Path)
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func scoped(opts ...mcp.ToolOption) []mcp.ToolOption {
	return append([]mcp.ToolOption{
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project to edit")),
		mcp.WithString("layer_id", mcp.Description("Layer the call is issued from (default: root)")),
	}, opts...)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List the stored project ids."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ids, err := s.manager.List(ctx)
		if err != nil {
			return mcp.NewToolResultErrorFromErr("list failed", err), nil
		}
		return mcp.NewToolResultJSON(map[string][]string{"projects": ids})
	})

	s.mcpServer.AddTool(mcp.NewTool("get_layer", scoped(
		mcp.WithDescription("Get a layer with its nodes and edges."),
	)...), mcp.NewTypedToolHandler(s.handleGetLayer))

	s.mcpServer.AddTool(mcp.NewTool("add_node", scoped(
		mcp.WithDescription("Add a narrative, choice or note node to the layer."),
		mcp.WithString("kind", mcp.Required(), mcp.Enum("narrative", "choice", "note")),
		mcp.WithString("text", mcp.Description("Node text")),
		mcp.WithString("title", mcp.Description("Node title")),
		mcp.WithNumber("x", mcp.Description("Canvas x coordinate")),
		mcp.WithNumber("y", mcp.Description("Canvas y coordinate")),
		mcp.WithOutputSchema[Result](),
	)...), mcp.NewStructuredToolHandler(s.handleAddNode))

	s.mcpServer.AddTool(mcp.NewTool("add_layer", scoped(
		mcp.WithDescription("Create a nested layer inside the layer."),
		mcp.WithString("name", mcp.Description("Layer name")),
		mcp.WithNumber("x", mcp.Description("Canvas x coordinate")),
		mcp.WithNumber("y", mcp.Description("Canvas y coordinate")),
		mcp.WithOutputSchema[Result](),
	)...), mcp.NewStructuredToolHandler(s.handleAddLayer))

	s.mcpServer.AddTool(mcp.NewTool("connect", scoped(
		mcp.WithDescription("Connect two nodes of the layer. Handles address the ports of a nested layer."),
		mcp.WithString("source", mcp.Required(), mcp.Description("Source node id")),
		mcp.WithString("target", mcp.Required(), mcp.Description("Target node id")),
		mcp.WithString("source_handle", mcp.Description("Ending port of the source layer")),
		mcp.WithString("target_handle", mcp.Description("Starting port of the target layer")),
		mcp.WithOutputSchema[Result](),
	)...), mcp.NewStructuredToolHandler(s.handleConnect))

	s.mcpServer.AddTool(mcp.NewTool("delete_nodes", scoped(
		mcp.WithDescription("Delete nodes with their edges. Deleting a layer node removes its subtree."),
		mcp.WithArray("ids", mcp.Required(), mcp.WithStringItems()),
		mcp.WithOutputSchema[Result](),
	)...), mcp.NewStructuredToolHandler(s.handleDelete))

	s.mcpServer.AddTool(mcp.NewTool("duplicate_nodes", scoped(
		mcp.WithDescription("Duplicate nodes in place, keeping the edges between them."),
		mcp.WithArray("ids", mcp.Required(), mcp.WithStringItems()),
		mcp.WithOutputSchema[Result](),
	)...), mcp.NewStructuredToolHandler(s.handleDuplicate))

	s.mcpServer.AddTool(mcp.NewTool("undo", scoped(
		mcp.WithDescription("Undo the last command if it belongs to the layer."),
		mcp.WithOutputSchema[Result](),
	)...), mcp.NewStructuredToolHandler(s.handleUndo))

	s.mcpServer.AddTool(mcp.NewTool("redo", scoped(
		mcp.WithDescription("Redo the last undone command if it belongs to the layer."),
		mcp.WithOutputSchema[Result](),
	)...), mcp.NewStructuredToolHandler(s.handleRedo))
}

// edit runs fn from the target layer and reports the history state with the
// notices raised along the way.
func (s *Server) edit(ctx context.Context, t Scope, fn func(context.Context, *goflow.Editor) ([]string, bool, error)) (Result, error) {
	var res Result
	err := s.manager.Edit(ctx, t.ProjectID, func(ctx context.Context, ed *goflow.Editor) error {
		if t.LayerID != "" {
			if err := ed.Navigate(t.LayerID); err != nil {
				return err
			}
		}
		ids, applied, err := fn(ctx, ed)
		if err != nil {
			return err
		}
		res = Result{IDs: ids, Applied: applied, CanUndo: ed.CanUndo(), CanRedo: ed.CanRedo()}
		return nil
	})
	notices := s.notifiers.For(t.ProjectID).Drain()
	if err != nil {
		s.logger.Debug("mcp tool failed", "project_id", t.ProjectID, "err", err)
		return Result{}, err
	}
	res.Notices = notices
	return res, nil
}

func (s *Server) handleGetLayer(ctx context.Context, request mcp.CallToolRequest, args Scope) (*mcp.CallToolResult, error) {
	layerID := args.LayerID
	if layerID == "" {
		layerID = domain.RootLayerID
	}
	var out []byte
	err := s.manager.View(ctx, args.ProjectID, func(_ context.Context, ed *goflow.Editor) error {
		l, err := ed.Store().Layer(layerID)
		if err != nil {
			return err
		}
		out, err = json.Marshal(l)
		return err
	})
	if err != nil {
		return mcp.NewToolResultErrorFromErr("get layer failed", err), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) handleAddNode(ctx context.Context, request mcp.CallToolRequest, args AddNodeArgs) (Result, error) {
	at := domain.Coordinates{X: args.X, Y: args.Y}
	data := domain.NodeData{Text: args.Text, Title: args.Title}
	var node *domain.Node
	switch domain.NodeKind(args.Kind) {
	case domain.KindNarrative:
		node = domain.NewNarrative("", at, data)
	case domain.KindChoice:
		node = domain.NewChoice("", at, data)
	case domain.KindNote:
		node = domain.NewNote("", at, data)
	default:
		return Result{}, fmt.Errorf("%w: unsupported kind %q", domain.ErrInvalidNode, args.Kind)
	}
	return s.edit(ctx, args.Scope, func(ctx context.Context, ed *goflow.Editor) ([]string, bool, error) {
		id, err := ed.AddNode(ctx, node)
		return []string{id}, true, err
	})
}

func (s *Server) handleAddLayer(ctx context.Context, request mcp.CallToolRequest, args AddLayerArgs) (Result, error) {
	return s.edit(ctx, args.Scope, func(ctx context.Context, ed *goflow.Editor) ([]string, bool, error) {
		id, err := ed.AddLayer(ctx, domain.Coordinates{X: args.X, Y: args.Y}, args.Name)
		return []string{id}, true, err
	})
}

func (s *Server) handleConnect(ctx context.Context, request mcp.CallToolRequest, args ConnectArgs) (Result, error) {
	return s.edit(ctx, args.Scope, func(ctx context.Context, ed *goflow.Editor) ([]string, bool, error) {
		id, err := ed.Connect(ctx, graph.ConnectParams{
			Source:       args.Source,
			Target:       args.Target,
			SourceHandle: args.SourceHandle,
			TargetHandle: args.TargetHandle,
		})
		return []string{id}, true, err
	})
}

func (s *Server) handleDelete(ctx context.Context, request mcp.CallToolRequest, args SelectionArgs) (Result, error) {
	return s.edit(ctx, args.Scope, func(ctx context.Context, ed *goflow.Editor) ([]string, bool, error) {
		return nil, true, ed.Delete(ctx, args.IDs...)
	})
}

func (s *Server) handleDuplicate(ctx context.Context, request mcp.CallToolRequest, args SelectionArgs) (Result, error) {
	return s.edit(ctx, args.Scope, func(ctx context.Context, ed *goflow.Editor) ([]string, bool, error) {
		ids, err := ed.Duplicate(ctx, args.IDs...)
		return ids, true, err
	})
}

func (s *Server) handleUndo(ctx context.Context, request mcp.CallToolRequest, args Scope) (Result, error) {
	return s.edit(ctx, args, func(ctx context.Context, ed *goflow.Editor) ([]string, bool, error) {
		applied, err := ed.Undo(ctx)
		return nil, applied, err
	})
}

func (s *Server) handleRedo(ctx context.Context, request mcp.CallToolRequest, args Scope) (Result, error) {
	return s.edit(ctx, args, func(ctx context.Context, ed *goflow.Editor) ([]string, bool, error) {
		applied, err := ed.Redo(ctx)
		return nil, applied, err
	})
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(ProjectsURI, "Stored projects",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := s.manager.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list projects: %w", err)
		}
		jsonBytes, _ := json.Marshal(ids)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      ProjectsURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
