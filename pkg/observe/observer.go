// Package observe binds consumers (UI components, printers, watchers) to the
// exact props their render logic reads.
//
// An Observer installs itself as the engine's render-hook reporter while the
// render runs, rebuilds its dependency set from scratch on every render and
// subscribes one re-render callback to each collected prop.
package observe

import (
	"log/slog"
	"sort"

	"github.com/aretw0/vine/internal/core"
	"github.com/aretw0/vine/internal/logging"
	"github.com/aretw0/vine/pkg/domain"
)

// Dependency is one prop collected during the last render.
type Dependency struct {
	Name string
	Deep bool
}

// Observer tracks the dependencies of a single render function.
type Observer struct {
	eng    *core.Engine
	render func()
	logger *slog.Logger

	cb       *domain.Callback
	deps     map[*core.Prop]bool
	renders  int
	disposed bool
}

// Option configures an Observer.
type Option func(*Observer)

// WithLogger sets the logger used to trace renders.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Observer) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New renders once and re-renders whenever a finalize pass notifies any
// collected prop.
func New(eng *core.Engine, render func(), opts ...Option) *Observer {
	o := &Observer{
		eng:    eng,
		render: render,
		logger: logging.NewNop(),
		deps:   make(map[*core.Prop]bool),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.cb = domain.NewCallback(o.Render)
	o.Render()
	return o
}

// Render runs the render function, collecting a fresh dependency set.
func (o *Observer) Render() {
	if o.disposed {
		return
	}
	o.teardown()

	collected := make(map[*core.Prop]bool)
	prev := o.eng.SetReporter(core.ReporterFunc(func(p *core.Prop, deep bool) {
		collected[p] = collected[p] || deep
	}))
	defer func() {
		o.eng.SetReporter(prev)
		o.deps = collected
		for p, deep := range collected {
			p.Subscribe(o.cb, deep)
		}
		o.renders++
		o.logger.Debug("render", "deps", len(collected), "renders", o.renders)
	}()
	o.render()
}

// Renders returns how many times the render function ran.
func (o *Observer) Renders() int {
	return o.renders
}

// Dependencies lists the props read by the last render, sorted by name.
func (o *Observer) Dependencies() []Dependency {
	out := make([]Dependency, 0, len(o.deps))
	for p, deep := range o.deps {
		out = append(out, Dependency{Name: p.Name(), Deep: deep})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Dispose removes every subscription. The observer never renders again.
func (o *Observer) Dispose() {
	o.teardown()
	o.disposed = true
}

func (o *Observer) teardown() {
	for p, deep := range o.deps {
		p.Unsubscribe(o.cb, deep)
	}
	o.deps = make(map[*core.Prop]bool)
}
