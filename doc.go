/*
Package vine is a fine-grained reactive state container.

Stores hold JSON-shaped state behind read-only views. State changes only
inside actions, which receive a writable view; every write goes to a
copy-on-write draft, and all writes of one turn are committed and notified
together in a single batched pass. Consumers are notified only when a
property they actually read changed, including computed properties whose
value is derived lazily from other properties and cached until one of its
inputs changes.

# Concept

A turn ends when the engine's microtask queue is drained with Engine.Tick,
or after each closure executed by Engine.Run. The engine is goroutine
confined: use Engine.Do to reach it from other goroutines.

# Usage

	eng := vine.New(vine.WithLogger(logger))

	counter, err := eng.CreateStore(vine.Definition{
		Name:  "Counter",
		State: map[string]any{"count": 0},
		Computed: map[string]vine.ComputedFunc{
			"double": func(self *vine.View) any { return self.Get("count").(int) * 2 },
		},
		Actions: map[string]vine.ActionFunc{
			"inc": func(self *vine.View, _ ...any) (any, error) {
				return nil, self.Set("count", self.Get("count").(int)+1)
			},
		},
	})
	if err != nil {
		log.Fatal(err)
	}

	obs := eng.Observe(func() {
		fmt.Println("double:", counter.View().Get("double"))
	})
	defer obs.Dispose()

	counter.Call("inc")
	counter.Call("inc")
	eng.Tick() // one re-render: "double: 4"

# Collaborators

  - pkg/observe: render-scoped dependency collection for UI bindings.
  - pkg/persist: mirrors stores into a ports.Storage with versioned envelopes.
  - pkg/serialize: JSON round-trips for registered Go types.
  - pkg/formula and pkg/definition: declarative stores from YAML or JSON.
  - pkg/observability: Prometheus metrics from lifecycle hooks.
*/
package vine
