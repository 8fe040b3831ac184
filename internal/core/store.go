package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/vine/pkg/domain"
)

// ActionFunc is a named mutation. self is the store's inner (mutable) root view.
type ActionFunc func(self *View, args ...any) (any, error)

// Definition declares a store: plain state, derivations and actions are
// resolved once, at construction.
type Definition struct {
	// Name is the display prefix of the store identity.
	Name string
	// State is the initial data tree. It is deep-copied.
	State map[string]any
	// Computed maps a key (dotted for nested objects) to its derivation.
	Computed map[string]ComputedFunc
	// Actions are only reachable from the root.
	Actions map[string]ActionFunc
}

type listener struct {
	fn func(names []string)
}

// Store is one reactive state container: its own state-node tree and
// property registry, sharing the engine's scheduler with every other store.
type Store struct {
	engine  *Engine
	name    string
	root    *node
	props   map[propKey]*Prop
	actions map[string]ActionFunc

	listeners *set[*listener]
}

// CreateStore validates def and registers a new store named
// "<def.Name>@S<ordinal>".
func (e *Engine) CreateStore(def Definition) (*Store, error) {
	base := strings.ReplaceAll(def.Name, ".", "_")
	if base == "" {
		base = "Store"
	}
	e.storeCount++
	name := fmt.Sprintf("%s@S%d", base, e.storeCount)

	state, err := normalize(def.State)
	if err != nil {
		return nil, domain.Violation(name, "define", name, err)
	}
	if state == nil {
		state = map[string]any{}
	}
	if err := checkDefinition(name, state.(map[string]any), def); err != nil {
		return nil, err
	}

	s := &Store{
		engine:    e,
		name:      name,
		props:     make(map[propKey]*Prop),
		actions:   make(map[string]ActionFunc, len(def.Actions)),
		listeners: newSet[*listener](),
	}
	s.root = newNode(s, name, nil, state)
	s.root.isRoot = true

	for key, fn := range def.Actions {
		s.actions[key] = fn
	}
	for key, fn := range def.Computed {
		p := e.prop(s, name+"."+key, false)
		p.computed = newComputed(fn)
	}

	e.stores[name] = s
	e.logger.Debug("create store", "store", name, "computed", len(def.Computed), "actions", len(def.Actions))
	return s, nil
}

func checkDefinition(name string, state map[string]any, def Definition) error {
	for _, key := range sortedKeys(def.Computed) {
		if def.Computed[key] == nil {
			return domain.Violation(name, "define", name+"."+key, domain.ErrInvalidValue)
		}
		segs := strings.Split(key, ".")
		for _, seg := range segs {
			if !validKey(seg) {
				return domain.Violation(name, "define", name+"."+key, domain.ErrInvalidKey)
			}
		}
		if resolvePlain(state, segs) {
			return domain.Violation(name, "define", name+"."+key, domain.ErrConflictingDeclaration)
		}
		if _, ok := def.Actions[segs[0]]; ok {
			return domain.Violation(name, "define", name+"."+key, domain.ErrConflictingDeclaration)
		}
	}
	for _, key := range sortedKeys(def.Actions) {
		if def.Actions[key] == nil {
			return domain.Violation(name, "define", name+"."+key, domain.ErrInvalidValue)
		}
		if !validKey(key) {
			return domain.Violation(name, "define", name+"."+key, domain.ErrInvalidKey)
		}
		if _, ok := state[key]; ok {
			return domain.Violation(name, "define", name+"."+key, domain.ErrConflictingDeclaration)
		}
	}
	return nil
}

// resolvePlain reports whether the dotted path already holds data.
func resolvePlain(state map[string]any, segs []string) bool {
	var cur any = state
	for _, seg := range segs {
		v, ok := readRaw(cur, seg)
		if !ok {
			return false
		}
		cur = v
	}
	return true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Name returns the unique store identity.
func (s *Store) Name() string {
	return s.name
}

// Engine returns the engine that owns s.
func (s *Store) Engine() *Engine {
	return s.engine
}

// View returns the read-only root view.
func (s *Store) View() *View {
	return s.root.view(false)
}

// Actions lists the declared action names.
func (s *Store) Actions() []string {
	return sortedKeys(s.actions)
}

// Call runs a named action against the inner root view.
func (s *Store) Call(name string, args ...any) (any, error) {
	action, ok := s.actions[name]
	if !ok {
		return nil, domain.Violation(s.name, "call", s.name+"."+name, domain.ErrUnknownAction)
	}
	return action(s.root.view(true), args...)
}

// Produce runs fn with the inner root view, for collaborators that restore
// or patch state without a declared action.
func (s *Store) Produce(fn func(inner *View) error) error {
	return fn(s.root.view(true))
}

func (s *Store) bind(action ActionFunc) func(args ...any) (any, error) {
	return func(args ...any) (any, error) {
		return action(s.root.view(true), args...)
	}
}

// Subscribe registers a store-level listener. It receives the sorted
// dotted names of every prop that net-changed in a finalize pass.
func (s *Store) Subscribe(fn func(names []string)) (unsubscribe func()) {
	l := &listener{fn: fn}
	s.listeners.add(l)
	return func() {
		s.listeners.remove(l)
	}
}

// Prop returns the registered Prop for a path relative to the root, or nil
// if nothing ever read or wrote it. An empty path names the root node.
func (s *Store) Prop(path string, keys bool) *Prop {
	name := s.name
	if path != "" {
		name += "." + path
	}
	return s.engine.lookup(s, name, keys)
}
