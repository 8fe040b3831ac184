// Package server exposes an engine's stores over HTTP for inspection and
// scripted action calls.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/vine"
	"github.com/aretw0/vine/internal/logging"
	"github.com/aretw0/vine/pkg/domain"
	"github.com/go-chi/chi/v5"
)

// Server serves the stores of one engine. Every store access goes through
// Engine.Do, so the engine's Run loop must be active.
type Server struct {
	Engine  *vine.Engine
	Streams *StreamManager

	metrics http.Handler
	logger  *slog.Logger

	mu      sync.Mutex
	watched map[string]bool
	// last holds the previous snapshot per store; only touched on the engine goroutine.
	last map[string]map[string]any
}

// Option configures the Server.
type Option func(*Server)

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger configures the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// ActionRequest is the body of an action call.
type ActionRequest struct {
	Args []any `json:"args"`
}

// ActionResponse reports an action's result and the store state it left.
type ActionResponse struct {
	Result any `json:"result,omitempty"`
	State  any `json:"state"`
}

// StoreInfo describes a store in listings.
type StoreInfo struct {
	Name    string   `json:"name"`
	Actions []string `json:"actions"`
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine *vine.Engine, opts ...Option) http.Handler {
	handler, _ := New(engine, opts...)
	return handler
}

// New returns the router together with the Server behind it.
func New(engine *vine.Engine, opts ...Option) (http.Handler, *Server) {
	server := &Server{
		Engine:  engine,
		Streams: NewStreamManager(),
		logger:  logging.NewNop(),
		watched: make(map[string]bool),
		last:    make(map[string]map[string]any),
	}
	for _, opt := range opts {
		opt(server)
	}

	r := chi.NewRouter()
	r.Get("/health", server.GetHealth)
	r.Get("/info", server.GetInfo)
	if server.metrics != nil {
		r.Method(http.MethodGet, "/metrics", server.metrics)
	}
	r.Route("/stores", func(r chi.Router) {
		r.Get("/", server.ListStores)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", server.GetStore)
			r.Get("/events", server.SubscribeEvents)
			r.Post("/actions/{action}", server.CallAction)
		})
	})
	return enableCORS(r), server
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("response encode failed", "err", err)
	}
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{
		"app":     "vine-http",
		"version": strings.TrimSpace(vine.Version),
	})
}

// ListStores handles the GET /stores request.
func (s *Server) ListStores(w http.ResponseWriter, r *http.Request) {
	var infos []StoreInfo
	err := s.Engine.Do(r.Context(), func() error {
		for _, name := range s.Engine.Stores() {
			store, _ := s.Engine.Store(name)
			infos = append(infos, StoreInfo{Name: name, Actions: store.Actions()})
		}
		return nil
	})
	if err != nil {
		s.fail(w, "list stores", err)
		return
	}
	if infos == nil {
		infos = []StoreInfo{}
	}
	writeJSON(w, s.logger, http.StatusOK, infos)
}

// GetStore handles GET /stores/{name}. A "path" query parameter selects a
// dotted sub-path.
func (s *Server) GetStore(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	path := r.URL.Query().Get("path")

	var value any
	err := s.withStore(r.Context(), name, func(store *vine.Store) error {
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
		s.fail(w, "get store", err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, value)
}

// CallAction handles POST /stores/{name}/actions/{action}.
func (s *Server) CallAction(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	action := chi.URLParam(r, "action")

	var body ActionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			s.logger.Warn("CallAction: Invalid request body", "err", err)
			return
		}
	}

	var resp ActionResponse
	err := s.withStore(r.Context(), name, func(store *vine.Store) error {
		result, err := store.Call(action, body.Args...)
		if err != nil {
			return err
		}
		resp.Result = result
		if v, ok := result.(*vine.View); ok {
			resp.Result = v.Snapshot()
		}
		// Latest includes the drafts this action wrote.
		resp.State = store.View().Snapshot()
		return nil
	})
	if err != nil {
		s.fail(w, "call action", err)
		return
	}
	s.logger.Debug("action called", "store", name, "action", action)
	writeJSON(w, s.logger, http.StatusOK, resp)
}

func (s *Server) withStore(ctx context.Context, name string, fn func(*vine.Store) error) error {
	return s.Engine.Do(ctx, func() error {
		store, ok := s.Engine.Store(name)
		if !ok {
			return fmt.Errorf("store %q: %w", name, domain.ErrNotFound)
		}
		return fn(store)
	})
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUnknownAction):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrOutsideAction),
		errors.Is(err, domain.ErrComputedWrite),
		errors.Is(err, domain.ErrInvalidKey),
		errors.Is(err, domain.ErrInvalidValue),
		errors.Is(err, domain.ErrNotContainer):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.logger.Error(op+" failed", "err", err)
	} else {
		s.logger.Warn(op+" rejected", "err", err)
	}
	writeJSON(w, s.logger, status, map[string]string{"error": err.Error()})
}
