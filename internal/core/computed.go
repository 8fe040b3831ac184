package core

import (
	"strings"
	"time"

	"github.com/aretw0/vine/pkg/domain"
)

type unsetValue struct{}

// unset marks a computed that never evaluated; nil is a legitimate value.
var unset any = &unsetValue{}

// ComputedFunc derives a value from the object that owns the computed key.
// self is that object's read-only view.
type ComputedFunc func(self *View) any

// Computed is a cached, lazily recomputed derivation attached to a Prop.
// Its upstream edges are rebuilt from scratch on every evaluation.
type Computed struct {
	getter  ComputedFunc
	value   any
	changed bool

	// deps are the Props this computed read directly; each dep lists the
	// computed in its subscribeComputers.
	deps []*Prop
	// observed are subtree Props this computed depends on deeply; they are
	// re-validated against the committed chain in every finalize pass.
	observed []*Prop
}

func newComputed(getter ComputedFunc) *Computed {
	return &Computed{
		getter:  getter,
		value:   unset,
		changed: true,
	}
}

func (c *Computed) current() any {
	if c.value == unset {
		return nil
	}
	return c.value
}

// Dirty reports whether the next read re-runs the getter.
func (p *Prop) Dirty() bool {
	return p.computed != nil && p.computed.changed
}

func (e *Engine) trackComputed(target, p *Prop, deep bool) {
	c := target.computed
	if deep {
		for _, o := range c.observed {
			if o == p {
				return
			}
		}
		c.observed = append(c.observed, p)
		e.observing.add(target)
		return
	}
	if p.subscribeComputers.add(target) {
		c.deps = append(c.deps, p)
	}
}

func (e *Engine) teardown(target *Prop) {
	c := target.computed
	for _, dep := range c.deps {
		dep.subscribeComputers.remove(target)
	}
	c.deps = c.deps[:0]
	c.observed = nil
	e.observing.remove(target)
}

// computedValue returns the cached value, re-running the getter only when
// the computed is dirty.
func (e *Engine) computedValue(p *Prop) any {
	c := p.computed
	if !c.changed || e.evaluating(p) {
		return c.current()
	}

	owner := e.resolveOwner(p)
	if owner == nil {
		// The owning subtree is gone; keep serving the last value.
		return c.current()
	}

	e.teardown(p)
	e.trackOwnerPath(p)

	start := time.Now()
	prev := c.value
	next := e.evaluate(p, owner)

	changed := prev != unset && !sameValue(next, prev)
	if changed {
		if orig, ok := e.pendingComputed[p]; ok {
			if sameValue(orig, next) {
				delete(e.pendingComputed, p)
			}
		} else {
			e.pendingComputed[p] = prev
		}
	}
	c.value = next

	if v, ok := next.(*View); ok && v != nil {
		e.trackComputed(p, e.prop(v.node.store, v.node.name, false), true)
	}

	e.logger.Debug("computed evaluated", "prop", p.name, "changed", changed)
	if e.hooks.OnCompute != nil {
		e.hooks.OnCompute(&domain.ComputeEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventCompute, Store: p.store.name},
			Prop:      p.name,
			Changed:   changed,
			Duration:  time.Since(start),
		})
	}
	return next
}

// evaluating reports whether p is on the collector stack; a self-referencing
// getter sees its previous value.
func (e *Engine) evaluating(p *Prop) bool {
	for _, t := range e.computedTarget {
		if t == p {
			return true
		}
	}
	return false
}

func (e *Engine) evaluate(p *Prop, owner *node) any {
	e.computedTarget = append(e.computedTarget, p)
	defer func() {
		p.computed.changed = false
		e.computedTarget = e.computedTarget[:len(e.computedTarget)-1]
	}()
	return p.computed.getter(owner.view(false))
}

// resolveOwner walks from the store root to the object holding the computed
// key, without reporting reads. It returns nil when the path no longer
// resolves to an object.
func (e *Engine) resolveOwner(p *Prop) *node {
	s := p.store
	if s.root == nil {
		return nil
	}
	rel := strings.TrimPrefix(p.name, s.name+".")
	segs := strings.Split(rel, ".")
	n := s.root
	for _, seg := range segs[:len(segs)-1] {
		child, ok := n.child(seg)
		if !ok {
			return nil
		}
		n = child
	}
	if isArray(n.latest()) {
		return nil
	}
	return n
}

// trackOwnerPath makes a nested computed depend on every ancestor of its
// owner, so replacing an enclosing object invalidates it.
func (e *Engine) trackOwnerPath(p *Prop) {
	s := p.store
	segs := strings.Split(strings.TrimPrefix(p.name, s.name+"."), ".")
	name := s.name
	for _, seg := range segs[:len(segs)-1] {
		name += "." + seg
		e.trackComputed(p, e.prop(s, name, false), false)
	}
}

// invalidate marks every computed reading p dirty, transitively.
func (e *Engine) invalidate(p *Prop) {
	seen := make(map[*Prop]bool)
	for _, sc := range p.subscribeComputers.items() {
		e.cascade(sc, seen)
	}
}

func (e *Engine) cascade(p *Prop, seen map[*Prop]bool) {
	if seen[p] {
		return
	}
	seen[p] = true
	if p.computed != nil {
		p.computed.changed = true
	}
	for _, sc := range p.subscribeComputers.items() {
		e.cascade(sc, seen)
	}
}
