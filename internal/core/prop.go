package core

import (
	"github.com/aretw0/vine/pkg/domain"
)

const keysSuffix = ".keys()"

type propKey struct {
	name   string
	isKeys bool
}

// Prop is the unit of dependency tracking: one per (store, dotted path, isKeys).
// It is created on first access and lives as long as its store.
type Prop struct {
	name   string
	store  *Store
	isKeys bool

	subscribers        *set[*domain.Callback]
	deepSubscribers    *set[*domain.Callback]
	subscribeComputers *set[*Prop]

	keysProp *Prop
	computed *Computed
}

func newProp(s *Store, name string, isKeys bool) *Prop {
	return &Prop{
		name:               name,
		store:              s,
		isKeys:             isKeys,
		subscribers:        newSet[*domain.Callback](),
		deepSubscribers:    newSet[*domain.Callback](),
		subscribeComputers: newSet[*Prop](),
	}
}

// Name returns the dotted path; keys props carry a ".keys()" suffix.
func (p *Prop) Name() string {
	if p.isKeys {
		return p.name + keysSuffix
	}
	return p.name
}

// Path returns the dotted path without the keys suffix.
func (p *Prop) Path() string {
	return p.name
}

// IsKeys reports whether p tracks key enumeration of a node.
func (p *Prop) IsKeys() bool {
	return p.isKeys
}

// IsComputed reports whether p is backed by a derivation.
func (p *Prop) IsComputed() bool {
	return p.computed != nil
}

// Subscribe adds cb to the direct or deep subscriber set.
func (p *Prop) Subscribe(cb *domain.Callback, deep bool) {
	if deep {
		p.deepSubscribers.add(cb)
		return
	}
	p.subscribers.add(cb)
}

// Unsubscribe removes cb from the direct or deep subscriber set.
func (p *Prop) Unsubscribe(cb *domain.Callback, deep bool) {
	if deep {
		p.deepSubscribers.remove(cb)
		return
	}
	p.subscribers.remove(cb)
}

// SubscriberCount returns the number of direct and deep subscribers.
func (p *Prop) SubscriberCount() (direct, deep int) {
	return p.subscribers.len(), p.deepSubscribers.len()
}

// prop returns the Prop for name, creating it on first access.
func (e *Engine) prop(s *Store, name string, isKeys bool) *Prop {
	k := propKey{name: name, isKeys: isKeys}
	if p, ok := s.props[k]; ok {
		return p
	}
	p := newProp(s, name, isKeys)
	s.props[k] = p
	return p
}

// lookup returns an existing Prop without creating it.
func (e *Engine) lookup(s *Store, name string, isKeys bool) *Prop {
	return s.props[propKey{name: name, isKeys: isKeys}]
}

// keysPropOf links the prop written at n to the keys prop of n, if anybody
// ever enumerated n.
func (e *Engine) keysPropOf(p *Prop, n *node) *Prop {
	if p.keysProp != nil {
		return p.keysProp
	}
	if kp := e.lookup(n.store, n.name, true); kp != nil {
		p.keysProp = kp
	}
	return p.keysProp
}
