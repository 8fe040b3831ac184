package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/vine"
	"github.com/aretw0/vine/internal/logging"
	"github.com/aretw0/vine/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const resourcePrefix = "vine://stores/"

// StoreInfo describes one store for list_stores.
type StoreInfo struct {
	Name    string   `json:"name"`
	Actions []string `json:"actions"`
}

// ActionResult is the call_action response: the action's return value and
// the store state including the writes it made.
type ActionResult struct {
	Result any `json:"result"`
	State  any `json:"state"`
}

// Server exposes the stores of a vine Engine as an MCP server: actions are
// tools and store states are resources. The engine must be served by
// Engine.Run while the server is up.
type Server struct {
	engine    *vine.Engine
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for rejected calls.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance. Resources are registered for
// the stores that exist at this point.
func NewServer(engine *vine.Engine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		mcpServer: server.NewMCPServer("vine-mcp", strings.TrimSpace(vine.Version)),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops it when
// ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(fmt.Sprintf("http://localhost:%d", port)))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))
	httpServer := &http.Server{Addr: addr, Handler: mux}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_stores",
		mcp.WithDescription("List the stores and the actions each one accepts."),
	), s.handleListStores)

	s.mcpServer.AddTool(mcp.NewTool("get_state",
		mcp.WithDescription("Read the plain state of a store, or of a dotted path inside it."),
		mcp.WithString("store", mcp.Required(), mcp.Description("Store name (Counter@S1) or unique definition name (Counter)")),
		mcp.WithString("path", mcp.Description("Dotted path inside the store (optional)")),
	), s.handleGetState)

	s.mcpServer.AddTool(mcp.NewTool("call_action",
		mcp.WithDescription("Run a store action as one turn and return its result and the new state."),
		mcp.WithString("store", mcp.Required(), mcp.Description("Store name (Counter@S1) or unique definition name (Counter)")),
		mcp.WithString("action", mcp.Required(), mcp.Description("Action name")),
		mcp.WithString("args", mcp.Description("JSON array of action arguments (optional)")),
	), s.handleCallAction)
}

func (s *Server) registerResources() {
	for _, name := range s.engine.Stores() {
		uri := resourcePrefix + name
		s.mcpServer.AddResource(mcp.NewResource(uri, name+" state",
			mcp.WithMIMEType("application/json"),
		), s.readStore)
	}
}

func (s *Server) handleListStores(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var infos []StoreInfo
	err := s.engine.Do(ctx, func() error {
		for _, name := range s.engine.Stores() {
			store, _ := s.engine.Store(name)
			infos = append(infos, StoreInfo{Name: name, Actions: store.Actions()})
		}
		return nil
	})
	if err != nil {
		return s.toolError("list_stores", err)
	}
	return jsonResult(infos)
}

func (s *Server) handleGetState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := request.RequireString("store")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path := request.GetString("path", "")

	var value any
	err = s.withStore(ctx, ref, func(store *vine.Store) error {
		if path == "" {
			value = store.View().Snapshot()
			return nil
		}
		value = store.View().Path(path)
		if v, ok := value.(*vine.View); ok {
			value = v.Snapshot()
		}
		if _, isFunc := value.(func(args ...any) (any, error)); isFunc {
			return domain.Violation(store.Name(), "get", path, domain.ErrInvalidKey)
		}
		return nil
	})
	if err != nil {
		return s.toolError("get_state", err)
	}
	return jsonResult(value)
}

func (s *Server) handleCallAction(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := request.RequireString("store")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	action, err := request.RequireString("action")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var args []any
	if raw := request.GetString("args", ""); raw != "" {
		clean, err := vine.SanitizeLine(raw)
		if err != nil {
			s.logger.Warn("MCP call_action: args rejected", "err", err, "size", len(raw))
			return mcp.NewToolResultError(fmt.Sprintf("args rejected: %v", err)), nil
		}
		if err := json.Unmarshal([]byte(clean), &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("args must be a JSON array: %v", err)), nil
		}
	}

	var out ActionResult
	err = s.withStore(ctx, ref, func(store *vine.Store) error {
		result, err := store.Call(action, args...)
		if err != nil {
			return err
		}
		out.Result = result
		if v, ok := result.(*vine.View); ok {
			out.Result = v.Snapshot()
		}
		out.State = store.View().Snapshot()
		return nil
	})
	if err != nil {
		return s.toolError("call_action", err)
	}
	s.logger.Debug("MCP action called", "store", ref, "action", action)
	return jsonResult(out)
}

func (s *Server) readStore(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := request.Params.URI
	name := strings.TrimPrefix(uri, resourcePrefix)

	var value any
	err := s.withStore(ctx, name, func(store *vine.Store) error {
		value = store.View().Snapshot()
		return nil
	})
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) withStore(ctx context.Context, ref string, fn func(*vine.Store) error) error {
	return s.engine.Do(ctx, func() error {
		store, ok := s.engine.Lookup(ref)
		if !ok {
			return fmt.Errorf("store %q: %w", ref, domain.ErrNotFound)
		}
		return fn(store)
	})
}

// toolError reports store failures to the client as tool errors, so the
// model sees them. Only a stopped engine is a server failure.
func (s *Server) toolError(tool string, err error) (*mcp.CallToolResult, error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.logger.Error("MCP "+tool+" failed", "err", err)
		return nil, fmt.Errorf("%s: %w", tool, err)
	}
	var violation *domain.ViolationError
	if errors.Is(err, domain.ErrNotFound) || errors.As(err, &violation) {
		s.logger.Warn("MCP "+tool+" rejected", "err", err)
	} else {
		s.logger.Error("MCP "+tool+" errored", "err", err)
	}
	return mcp.NewToolResultError(err.Error()), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
