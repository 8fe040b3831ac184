package core

import (
	"strconv"
	"strings"

	"github.com/aretw0/vine/pkg/domain"
)

// setData is the single write path for views. Violations are reported
// before anything is touched.
func (e *Engine) setData(del bool, n *node, key string, value any) error {
	s := n.store
	name := n.name + "." + key
	op := "set"
	if del {
		op = "delete"
	}

	src := n.latest()
	if err := checkKey(src, key); err != nil {
		return domain.Violation(s.name, op, name, err)
	}
	if p := e.lookup(s, name, false); p != nil && p.computed != nil {
		return domain.Violation(s.name, op, name, domain.ErrComputedWrite)
	}
	if n.isRoot {
		if _, ok := s.actions[key]; ok {
			return domain.Violation(s.name, op, name, domain.ErrConflictingDeclaration)
		}
	}

	if del {
		if isArray(src) && key == lengthKey {
			return domain.Violation(s.name, op, name, domain.ErrInvalidKey)
		}
	} else {
		var err error
		if value, err = normalize(value); err != nil {
			return domain.Violation(s.name, op, name, err)
		}
		if isArray(src) && key == lengthKey {
			size, ok := value.(int)
			if !ok || size < 0 {
				return domain.Violation(s.name, op, name, domain.ErrInvalidValue)
			}
		}
	}

	var changed bool
	if del {
		changed = hasKey(src, key)
	} else {
		current, ok := readRaw(src, key)
		changed = !ok || !sameValue(current, value) || (key == lengthKey && isArray(src))
	}
	if !changed {
		return nil
	}

	if e.autoMerge && !del {
		if merged, err := e.merge(n, key, value); merged {
			return err
		}
	}

	e.logger.Debug(op, "prop", name)
	p := e.prop(s, name, false)

	oldLen := -1
	if arr, ok := src.([]any); ok && key == lengthKey {
		oldLen = len(arr)
	}

	draft := n.draft()
	if del {
		n.copy = deleteRaw(draft, key)
	} else {
		n.copy = writeRaw(draft, key, value)
	}
	e.pending.Set(p, pendingChange{prop: p, node: n, key: key})

	// Computeds are invalidated synchronously so a read right after the
	// write already sees the draft.
	e.invalidate(p)
	if n.keysChanged(key) {
		if kp := e.keysPropOf(p, n); kp != nil {
			e.invalidate(kp)
		}
	}
	if oldLen >= 0 {
		e.resized(n, oldLen, value.(int))
	}
	e.invalidateObservers(n, p)
	// Appending past the end implicitly grows length.
	if !del && isArray(src) && key != lengthKey {
		if lp := e.lookup(s, n.name+"."+lengthKey, false); lp != nil && n.changed(lengthKey) {
			e.pending.Set(lp, pendingChange{prop: lp, node: n, key: lengthKey})
			e.invalidate(lp)
		}
	}

	e.emitWrite(s, p, del)
	e.schedule()
	return nil
}

// resized marks the indexes a length write added or dropped, and the key set
// of n, as changed. Nobody else reports them: the length prop is the only
// prop such a write touches directly.
func (e *Engine) resized(n *node, from, to int) {
	if from == to {
		return
	}
	s := n.store
	for i := min(from, to); i < max(from, to); i++ {
		key := strconv.Itoa(i)
		if ip := e.lookup(s, n.name+"."+key, false); ip != nil {
			e.pending.Set(ip, pendingChange{prop: ip, node: n, key: key})
			e.invalidate(ip)
		}
	}
	if kp := e.lookup(s, n.name, true); kp != nil {
		e.pending.Set(kp, pendingChange{prop: kp, node: n, key: lengthKey})
		e.invalidate(kp)
	}
}

// invalidateObservers dirties the computeds that depend deeply on the
// written prop p, on something under it, or on n or one of its ancestors,
// so they are stale before the finalize pass.
func (e *Engine) invalidateObservers(n *node, p *Prop) {
	if e.observing.len() == 0 {
		return
	}
	chain := map[*Prop]bool{p: true}
	for ; n != nil; n = n.parent {
		if np := e.lookup(n.store, n.name, false); np != nil {
			chain[np] = true
		}
	}
	under := p.name + "."
	seen := make(map[*Prop]bool)
	for _, cp := range e.observing.items() {
		for _, o := range cp.computed.observed {
			if chain[o] || strings.HasPrefix(o.name, under) {
				e.cascade(cp, seen)
				break
			}
		}
	}
}
