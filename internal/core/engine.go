package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/vine/internal/logging"
	"github.com/aretw0/vine/pkg/domain"
	"github.com/aretw0/vine/pkg/ports"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Reporter receives every tracked read while it is the active collector.
// The UI-binding collaborator implements it to collect render dependencies.
type Reporter interface {
	Depend(p *Prop, deep bool)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(p *Prop, deep bool)

// Depend implements Reporter.
func (f ReporterFunc) Depend(p *Prop, deep bool) {
	f(p, deep)
}

type pendingChange struct {
	prop *Prop
	node *node
	key  string
}

// Engine owns the registries, the dependency collector and the batched
// commit scheduler for a set of stores. It is confined to one goroutine;
// use Run and Do to share it.
type Engine struct {
	logger    *slog.Logger
	hooks     domain.LifecycleHooks
	batcher   ports.Batcher
	scheduler ports.Scheduler
	autoMerge bool

	storeCount int
	stores     map[string]*Store

	computedTarget []*Prop
	reporter       Reporter

	batched         *set[*domain.Callback]
	scheduled       bool
	pending         *orderedmap.OrderedMap[*Prop, pendingChange]
	pendingComputed map[*Prop]any
	observing       *set[*Prop]

	queue []func()
	inbox chan func()
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the structured logger used for debug tracing and recovered panics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithBatcher sets the UI batching primitive invoked once per finalize pass.
func WithBatcher(b ports.Batcher) Option {
	return func(e *Engine) {
		if b != nil {
			e.batcher = b
		}
	}
}

// WithScheduler replaces the engine's own microtask queue.
func WithScheduler(s ports.Scheduler) Option {
	return func(e *Engine) {
		e.scheduler = s
	}
}

// WithAutoMerge applies object/array replacement writes as structural diffs.
func WithAutoMerge(enabled bool) Option {
	return func(e *Engine) {
		e.autoMerge = enabled
	}
}

// NewEngine creates an engine with isolated registries.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger:  logging.NewNop(),
		batcher: ports.DirectBatcher{},
		inbox:   make(chan func()),
	}
	e.resetState()
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) resetState() {
	e.stores = make(map[string]*Store)
	e.computedTarget = nil
	e.reporter = nil
	e.batched = newSet[*domain.Callback]()
	e.scheduled = false
	e.pending = orderedmap.New[*Prop, pendingChange]()
	e.pendingComputed = make(map[*Prop]any)
	e.observing = newSet[*Prop]()
	e.queue = nil
}

// Reset drops every store, registry and pending change. Store ordinals keep
// increasing so names are never reused.
func (e *Engine) Reset() {
	e.resetState()
}

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}

// Store returns a store by its unique name.
func (e *Engine) Store(name string) (*Store, bool) {
	s, ok := e.stores[name]
	return s, ok
}

// Stores lists the registered store names.
func (e *Engine) Stores() []string {
	names := make([]string, 0, len(e.stores))
	for name := range e.stores {
		names = append(names, name)
	}
	return names
}

// SetReporter installs r as the active render-hook reporter and returns the
// previous one, which the caller restores when its render ends.
func (e *Engine) SetReporter(r Reporter) Reporter {
	prev := e.reporter
	e.reporter = r
	return prev
}

// Reporter returns the active render-hook reporter.
func (e *Engine) Reporter() Reporter {
	return e.reporter
}

// reportSubscribe routes a tracked read to the active computed and to the
// active render hook. Both may apply in nested evaluation.
func (e *Engine) reportSubscribe(p *Prop, deep bool) {
	if n := len(e.computedTarget); n > 0 {
		target := e.computedTarget[n-1]
		if target != p {
			e.trackComputed(target, p, deep)
		}
	}
	if e.reporter != nil {
		e.reporter.Depend(p, deep)
	}
}

// schedule enqueues a single finalize continuation per turn.
func (e *Engine) schedule() {
	if e.scheduled {
		return
	}
	e.scheduled = true
	if e.scheduler != nil {
		e.scheduler.Schedule(e.finalize)
		return
	}
	e.queue = append(e.queue, e.finalize)
}

// Pending reports whether a finalize pass is scheduled.
func (e *Engine) Pending() bool {
	return e.scheduled || len(e.queue) > 0
}

// Tick drains the microtask queue. Continuations scheduled while draining
// run in the same Tick as separate passes.
func (e *Engine) Tick() {
	for len(e.queue) > 0 {
		task := e.queue[0]
		e.queue = e.queue[1:]
		task()
	}
}

// Run executes closures submitted through Do on the calling goroutine,
// draining microtasks after each one, until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case task := <-e.inbox:
			task()
			e.Tick()
		}
	}
}

// Do runs fn on the goroutine executing Run and waits for it, including the
// finalize pass its writes scheduled.
func (e *Engine) Do(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	task := func() {
		err := e.call(fn)
		e.Tick()
		done <- err
	}
	select {
	case e.inbox <- task:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) call(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine task panicked: %v", r)
		}
	}()
	return fn()
}

// safely runs an observer callback; a panic is logged and swallowed so the
// remaining observers still receive the notification.
func (e *Engine) safely(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("observer panicked", "kind", kind, "panic", r)
		}
	}()
	fn()
}

func (e *Engine) emitWrite(s *Store, p *Prop, del bool) {
	if e.hooks.OnWrite == nil {
		return
	}
	e.hooks.OnWrite(&domain.WriteEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventWrite, Store: s.name},
		Prop:      p.name,
		Delete:    del,
	})
}
