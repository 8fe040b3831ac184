package core

// node is one level of the state tree: a committed base container and an
// optional draft. Child nodes are stored in place of the raw sub-containers
// they wrap, in both base and draft.
type node struct {
	name   string
	store  *Store
	parent *node

	base    any
	copy    any
	hasCopy bool
	expired bool
	isRoot  bool
	innerV  *View
	outerV  *View
}

func newNode(s *Store, name string, parent *node, base any) *node {
	n := &node{
		name:   name,
		store:  s,
		parent: parent,
		base:   base,
	}
	n.refreshViews()
	return n
}

func (n *node) latest() any {
	if n.hasCopy {
		return n.copy
	}
	return n.base
}

// draft returns the writable container, cloning base on the first write
// since the last commit.
func (n *node) draft() any {
	if !n.hasCopy {
		n.copy = shallowClone(n.base)
		n.hasCopy = true
	}
	return n.copy
}

func (n *node) commit() {
	if n.hasCopy {
		n.base = n.copy
		n.copy = nil
		n.hasCopy = false
	}
}

func (n *node) refreshViews() {
	n.innerV = &View{node: n, inner: true}
	n.outerV = &View{node: n}
}

func (n *node) view(inner bool) *View {
	if n.expired && !n.isRoot {
		n.expired = false
		n.refreshViews()
	}
	if inner {
		return n.innerV
	}
	return n.outerV
}

// child returns the node for the container stored at key, wrapping it on
// first access. ok is false when the value is not a container.
func (n *node) child(key string) (*node, bool) {
	raw, _ := readRaw(n.latest(), key)
	switch raw := raw.(type) {
	case *node:
		return raw, true
	case map[string]any, []any:
		c := newNode(n.store, n.name+"."+key, n, raw)
		n.store.engine.logger.Debug("create node", "node", c.name)
		n.replaceRaw(key, raw, c)
		return c, true
	}
	return nil, false
}

// replaceRaw swaps a raw container for its node wherever that exact container
// is stored, so wrapping is never observed as a change.
func (n *node) replaceRaw(key string, raw any, c *node) {
	if v, ok := readRaw(n.base, key); ok && sameValue(v, raw) {
		n.base = writeRaw(n.base, key, c)
	}
	if n.hasCopy {
		if v, ok := readRaw(n.copy, key); ok && sameValue(v, raw) {
			n.copy = writeRaw(n.copy, key, c)
		}
	}
}

// changed reports whether key net-changed between base and draft.
func (n *node) changed(key string) bool {
	if !n.hasCopy {
		return false
	}
	a, _ := readRaw(n.base, key)
	b, _ := readRaw(n.copy, key)
	return !sameValue(a, b)
}

// keysChanged reports whether key was added or removed by the draft.
func (n *node) keysChanged(key string) bool {
	if !n.hasCopy {
		return false
	}
	return hasKey(n.base, key) != hasKey(n.copy, key)
}

// discard drops a draft that netted out to no change.
func (n *node) discard() {
	n.copy = nil
	n.hasCopy = false
}
