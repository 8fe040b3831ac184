package core

import (
	"sort"
	"time"

	"github.com/aretw0/vine/pkg/domain"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// finalize is the batched commit-and-notify pass. It runs once per turn no
// matter how many writes were made before it.
func (e *Engine) finalize() {
	// Cleared first: writes made by listeners start a fresh pass.
	e.scheduled = false
	if e.pending.Len() == 0 {
		return
	}
	start := time.Now()

	directs := orderedmap.New[*Prop, *node]()
	all := newSet[*Prop]()
	drafts := newSet[*node]()
	changedStores := newSet[*Store]()
	names := make(map[*Store][]string)

	for pair := e.pending.Oldest(); pair != nil; pair = pair.Next() {
		ch := pair.Value
		drafts.add(ch.node)
		keysChanged := ch.node.keysChanged(ch.key)
		if !keysChanged && !ch.node.changed(ch.key) {
			continue
		}
		s := ch.prop.store
		directs.Set(ch.prop, ch.node)
		all.add(ch.prop)
		if keysChanged {
			if kp := e.keysPropOf(ch.prop, ch.node); kp != nil {
				directs.Set(kp, nil)
				all.add(kp)
			}
		}
		changedStores.add(s)
		names[s] = append(names[s], ch.prop.Name())
	}
	e.pending = orderedmap.New[*Prop, pendingChange]()

	if directs.Len() == 0 {
		for _, n := range drafts.items() {
			n.discard()
		}
		clear(e.pendingComputed)
		return
	}

	stores := changedStores.items()
	storeNames := make([]string, len(stores))
	for i, s := range stores {
		storeNames[i] = s.name
	}
	e.logger.Debug("finalize", "stores", storeNames, "changed", directs.Len())

	// Commit every changed node up to its root so later reads see the new
	// values and ancestors hand out fresh views.
	committed := make(map[*node]bool)
	for pair := directs.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value != nil {
			e.handleStateChain(pair.Value, all, committed)
		}
	}
	for _, n := range drafts.items() {
		if !committed[n] {
			n.discard()
		}
	}

	// Computeds depending on a whole subtree are re-validated against the
	// committed chain and propagate like direct changes.
	roots := make([]*Prop, 0, directs.Len())
	for pair := directs.Oldest(); pair != nil; pair = pair.Next() {
		roots = append(roots, pair.Key)
	}
	for _, cp := range e.observing.items() {
		// Writes already dirtied (or re-evaluated) the computeds whose
		// subtree changed; the committed chain catches the rest.
		_, recomputed := e.pendingComputed[cp]
		if cp.computed.changed || recomputed {
			roots = append(roots, cp)
			continue
		}
		for _, o := range cp.computed.observed {
			if all.has(o) {
				e.cascade(cp, make(map[*Prop]bool))
				roots = append(roots, cp)
				break
			}
		}
	}

	visited := make(map[*Prop]bool)
	for _, p := range roots {
		e.handleDirectChanged(p, visited)
	}
	clear(e.pendingComputed)

	listeners := 0
	for _, s := range stores {
		changed := names[s]
		sort.Strings(changed)
		for _, l := range s.listeners.items() {
			listeners++
			e.safely("listener", func() {
				l.fn(changed)
			})
		}
	}

	callbacks := e.batched.items()
	e.batched = newSet[*domain.Callback]()
	if len(callbacks) > 0 {
		e.safely("batcher", func() {
			e.batcher.Batch(func() {
				for _, cb := range callbacks {
					e.safely("subscriber", cb.Fire)
				}
			})
		})
	}

	if e.hooks.OnFinalize != nil {
		changed := make([]string, 0, directs.Len())
		for pair := directs.Oldest(); pair != nil; pair = pair.Next() {
			changed = append(changed, pair.Key.Name())
		}
		sort.Strings(changed)
		e.hooks.OnFinalize(&domain.FinalizeEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventFinalize},
			Stores:    storeNames,
			Changed:   changed,
			Notified:  len(callbacks),
			Listeners: listeners,
			Duration:  time.Since(start),
		})
	}
}

// handleStateChain expires and commits n and every ancestor, queueing the
// deep subscribers of each level.
func (e *Engine) handleStateChain(n *node, all *set[*Prop], committed map[*node]bool) {
	for ; n != nil && !committed[n]; n = n.parent {
		committed[n] = true
		n.expired = true
		n.commit()
		if p := e.lookup(n.store, n.name, false); p != nil {
			e.enqueue(p.deepSubscribers)
			all.add(p)
		}
	}
}

// handleDirectChanged queues the subscribers of a changed prop and walks the
// computeds reading it. A computed only counts as changed when its value
// differs from the one it had before this turn's writes.
func (e *Engine) handleDirectChanged(p *Prop, visited map[*Prop]bool) {
	if visited[p] {
		return
	}
	visited[p] = true

	if c := p.computed; c != nil {
		if c.changed {
			if p.subscribers.len() == 0 && p.deepSubscribers.len() == 0 && p.subscribeComputers.len() == 0 {
				return
			}
			// A panicking getter keeps its cached value; the pass goes on.
			e.safely("computed", func() { e.computedValue(p) })
		}
		if _, ok := e.pendingComputed[p]; !ok {
			return
		}
	}

	e.enqueue(p.subscribers)
	e.enqueue(p.deepSubscribers)
	for _, sc := range p.subscribeComputers.items() {
		e.handleDirectChanged(sc, visited)
	}
}

func (e *Engine) enqueue(subs *set[*domain.Callback]) {
	for _, cb := range subs.items() {
		e.batched.add(cb)
	}
}
