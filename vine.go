package vine

import (
	"context"
	"log/slog"
	"strings"

	"github.com/aretw0/vine/internal/core"
	"github.com/aretw0/vine/internal/logging"
	"github.com/aretw0/vine/pkg/domain"
	"github.com/aretw0/vine/pkg/observe"
	"github.com/aretw0/vine/pkg/ports"
)

// Core types re-exported for library users.
type (
	View         = core.View
	Store        = core.Store
	Prop         = core.Prop
	Definition   = core.Definition
	ComputedFunc = core.ComputedFunc
	ActionFunc   = core.ActionFunc
	Reporter     = core.Reporter
	ReporterFunc = core.ReporterFunc
)

// Engine is the high-level entry point for the vine library.
// It wraps the internal engine and carries the configuration of its stores.
type Engine struct {
	core      *core.Engine
	hooks     domain.LifecycleHooks
	batcher   ports.Batcher
	scheduler ports.Scheduler
	autoMerge bool
	logger    *slog.Logger
	Name      string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithBatcher sets the UI batching primitive wrapped around every
// notification batch.
func WithBatcher(b ports.Batcher) Option {
	return func(e *Engine) {
		e.batcher = b
	}
}

// WithScheduler hands the finalize continuation to an external microtask
// queue instead of the engine's own.
func WithScheduler(s ports.Scheduler) Option {
	return func(e *Engine) {
		e.scheduler = s
	}
}

// WithAutoMerge applies object and array replacement writes as structural
// diffs, so only the leaves that actually differ are invalidated.
func WithAutoMerge(enabled bool) Option {
	return func(e *Engine) {
		e.autoMerge = enabled
	}
}

// WithName labels the engine in logs.
func WithName(name string) Option {
	return func(e *Engine) {
		e.Name = name
	}
}

// New initializes a new vine Engine.
func New(opts ...Option) *Engine {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	// Ensure logger is initialized so the core never logs through a nil handler.
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("engine", eng.Name)
	}

	coreOpts := []core.Option{
		core.WithLogger(eng.logger),
		core.WithLifecycleHooks(eng.hooks),
		core.WithBatcher(eng.batcher),
		core.WithAutoMerge(eng.autoMerge),
	}
	if eng.scheduler != nil {
		coreOpts = append(coreOpts, core.WithScheduler(eng.scheduler))
	}
	eng.core = core.NewEngine(coreOpts...)
	return eng
}

// CreateStore registers a store built from def.
func (e *Engine) CreateStore(def Definition) (*Store, error) {
	return e.core.CreateStore(def)
}

// Store looks up a store by its unique name ("<Name>@S<n>").
func (e *Engine) Store(name string) (*Store, bool) {
	return e.core.Store(name)
}

// Lookup resolves ref to a store. ref is either a unique store name or a
// definition name shared by exactly one store ("Counter" for "Counter@S1").
func (e *Engine) Lookup(ref string) (*Store, bool) {
	if s, ok := e.core.Store(ref); ok {
		return s, true
	}
	var found *Store
	for _, name := range e.core.Stores() {
		base, _, _ := strings.Cut(name, "@")
		if base != ref {
			continue
		}
		if found != nil {
			return nil, false
		}
		found, _ = e.core.Store(name)
	}
	return found, found != nil
}

// Stores lists the registered store names.
func (e *Engine) Stores() []string {
	return e.core.Stores()
}

// Observe renders once and re-renders on every notification of a prop the
// last render read.
func (e *Engine) Observe(render func()) *observe.Observer {
	return observe.New(e.core, render, observe.WithLogger(e.logger))
}

// Tick drains the microtask queue, running any pending finalize pass.
func (e *Engine) Tick() {
	e.core.Tick()
}

// Pending reports whether a finalize pass is waiting for Tick.
func (e *Engine) Pending() bool {
	return e.core.Pending()
}

// Run serves Do calls on the calling goroutine until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	return e.core.Run(ctx)
}

// Do runs fn on the Run goroutine and returns after its finalize pass.
func (e *Engine) Do(ctx context.Context, fn func() error) error {
	return e.core.Do(ctx, fn)
}

// Reset drops every store and pending change.
func (e *Engine) Reset() {
	e.core.Reset()
}

// Core exposes the underlying engine to collaborators.
func (e *Engine) Core() *core.Engine {
	return e.core
}

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}
