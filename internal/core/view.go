package core

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/aretw0/vine/pkg/domain"
)

// View is the interception layer around a state node. Outer views are
// read-only; inner views, handed to actions, also accept writes. Both report
// every tracked read to the dependency collector.
//
// A node hands out new View pointers after each commit that touched its
// subtree, so pointer inequality means "this subtree changed".
type View struct {
	node  *node
	inner bool
}

func (v *View) engine() *Engine {
	return v.node.store.engine
}

// Name is the canonical identity of the view: the dotted path of its node,
// which for the root is the store name.
func (v *View) Name() string {
	return v.node.name
}

// StoreName returns the name of the owning store.
func (v *View) StoreName() string {
	return v.node.store.name
}

// String mirrors a toString tag: "[object <store name>]".
func (v *View) String() string {
	return "[object " + v.node.store.name + "]"
}

// IsInner reports whether writes are allowed through this view.
func (v *View) IsInner() bool {
	return v.inner
}

// IsArray reports whether the node wraps an array.
func (v *View) IsArray() bool {
	return isArray(v.node.latest())
}

// Get reads key, wrapping nested objects and arrays into child views.
func (v *View) Get(key string) any {
	n := v.node
	s := n.store
	e := s.engine

	if n.isRoot {
		if action, ok := s.actions[key]; ok {
			return s.bind(action)
		}
	}

	name := n.name + "." + key
	if p := e.lookup(s, name, false); p != nil && p.computed != nil {
		value := e.computedValue(p)
		if !isFunc(value) {
			e.reportSubscribe(p, false)
		}
		return value
	}

	raw, ok := readRaw(n.latest(), key)
	if isFunc(raw) {
		return raw
	}
	e.reportSubscribe(e.prop(s, name, false), false)
	if !ok {
		return nil
	}
	if _, wrapped := raw.(*node); wrapped || isContainer(raw) {
		child, _ := n.child(key)
		return child.view(v.inner)
	}
	return raw
}

// Path reads a dotted path relative to this view, tracking every segment.
func (v *View) Path(path string) any {
	var cur any = v
	for _, seg := range strings.Split(path, ".") {
		view, ok := cur.(*View)
		if !ok {
			return nil
		}
		cur = view.Get(seg)
	}
	return cur
}

// At reads an array element.
func (v *View) At(i int) any {
	return v.Get(strconv.Itoa(i))
}

// Has reports whether key exists. It depends on the node's key set.
func (v *View) Has(key string) bool {
	n := v.node
	e := v.engine()
	e.reportSubscribe(e.prop(n.store, n.name, true), false)
	if hasKey(n.latest(), key) {
		return true
	}
	if n.isRoot {
		if _, ok := n.store.actions[key]; ok {
			return true
		}
	}
	p := e.lookup(n.store, n.name+"."+key, false)
	return p != nil && p.computed != nil
}

// Keys enumerates the data keys (sorted for objects, indexes for arrays) and
// depends on the synthetic keys prop, so additions and removals are observed.
func (v *View) Keys() []string {
	n := v.node
	e := v.engine()
	e.reportSubscribe(e.prop(n.store, n.name, true), false)
	return keysOf(n.latest())
}

// Len returns the array length, or the number of keys of an object.
func (v *View) Len() int {
	if v.IsArray() {
		size, _ := v.Get(lengthKey).(int)
		return size
	}
	return len(v.Keys())
}

// Range calls fn for every key until it returns false.
func (v *View) Range(fn func(key string, value any) bool) {
	for _, key := range v.Keys() {
		if !fn(key, v.Get(key)) {
			return
		}
	}
}

// Set writes key. Only inner views accept writes.
func (v *View) Set(key string, value any) error {
	if err := v.writable("set", key); err != nil {
		return err
	}
	return v.engine().setData(false, v.node, key, value)
}

// Delete removes key from an object. Only inner views accept writes; arrays
// shrink through Pop and SetLen instead.
func (v *View) Delete(key string) error {
	if err := v.writable("delete", key); err != nil {
		return err
	}
	if v.IsArray() {
		return domain.Violation(v.node.store.name, "delete", v.node.name+"."+key, domain.ErrNotContainer)
	}
	return v.engine().setData(true, v.node, key, nil)
}

// SetAt writes an array element.
func (v *View) SetAt(i int, value any) error {
	return v.Set(strconv.Itoa(i), value)
}

// SetLen truncates or extends (with nil) an array.
func (v *View) SetLen(size int) error {
	return v.Set(lengthKey, size)
}

// Append pushes values onto an array. The implied length change is a write.
func (v *View) Append(values ...any) error {
	if err := v.writable("append", lengthKey); err != nil {
		return err
	}
	arr, ok := v.node.latest().([]any)
	if !ok {
		return domain.Violation(v.node.store.name, "append", v.node.name, domain.ErrNotContainer)
	}
	e := v.engine()
	size := len(arr)
	for _, value := range values {
		if err := e.setData(false, v.node, strconv.Itoa(size), value); err != nil {
			return err
		}
		size++
	}
	return e.setData(false, v.node, lengthKey, size)
}

// Pop removes and returns the last array element as a plain value.
func (v *View) Pop() (any, error) {
	if err := v.writable("pop", lengthKey); err != nil {
		return nil, err
	}
	arr, ok := v.node.latest().([]any)
	if !ok {
		return nil, domain.Violation(v.node.store.name, "pop", v.node.name, domain.ErrNotContainer)
	}
	if len(arr) == 0 {
		return nil, nil
	}
	last := plain(arr[len(arr)-1])
	e := v.engine()
	if err := e.setData(true, v.node, strconv.Itoa(len(arr)-1), nil); err != nil {
		return nil, err
	}
	if err := e.setData(false, v.node, lengthKey, len(arr)-1); err != nil {
		return nil, err
	}
	return last, nil
}

func (v *View) writable(op, key string) error {
	if v.inner {
		return nil
	}
	return domain.Violation(v.node.store.name, op, v.node.name+"."+key, domain.ErrOutsideAction)
}

// Plain returns a deep plain copy of the subtree and depends on all of it.
func (v *View) Plain() any {
	v.observeDeep()
	return plain(v.node.latest())
}

// Snapshot returns a deep plain copy without reporting any dependency.
func (v *View) Snapshot() any {
	return plain(v.node.latest())
}

// MarshalJSON serializes the latest value as ordinary nested JSON.
func (v *View) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Plain())
}

// ObserveDeep reports a dependency on anything under v's subtree, without
// reading it.
func (v *View) ObserveDeep() {
	v.observeDeep()
}

func (v *View) observeDeep() {
	n := v.node
	e := v.engine()
	e.reportSubscribe(e.prop(n.store, n.name, false), true)
}

// ObserveDeep reports a dependency on anything under v's subtree to the
// active collector.
func (e *Engine) ObserveDeep(v *View) {
	if v != nil {
		v.observeDeep()
	}
}
