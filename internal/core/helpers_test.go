package core_test

import (
	"testing"

	"github.com/aretw0/vine/internal/core"
	"github.com/aretw0/vine/pkg/domain"
	"github.com/aretw0/vine/pkg/ports"
	"github.com/stretchr/testify/require"
)

// consumer mimics a UI component: it collects the props its render reads
// and subscribes a re-render callback to each of them.
type consumer struct {
	eng      *core.Engine
	render   func()
	cb       *domain.Callback
	deps     map[*core.Prop]bool
	notified int
}

func newConsumer(eng *core.Engine, render func()) *consumer {
	c := &consumer{eng: eng, render: render}
	c.cb = domain.NewCallback(func() {
		c.notified++
		c.run()
	})
	c.run()
	return c
}

func (c *consumer) run() {
	for p, deep := range c.deps {
		p.Unsubscribe(c.cb, deep)
	}
	c.deps = make(map[*core.Prop]bool)
	prev := c.eng.SetReporter(core.ReporterFunc(func(p *core.Prop, deep bool) {
		c.deps[p] = c.deps[p] || deep
	}))
	defer c.eng.SetReporter(prev)
	c.render()
	for p, deep := range c.deps {
		p.Subscribe(c.cb, deep)
	}
}

type batchCounter struct {
	batches int
}

func (b *batchCounter) Batch(fn func()) {
	b.batches++
	fn()
}

var _ ports.Batcher = (*batchCounter)(nil)

func counterDef() core.Definition {
	return core.Definition{
		Name:  "Counter",
		State: map[string]any{"count": 0},
		Computed: map[string]core.ComputedFunc{
			"double": func(self *core.View) any {
				return self.Get("count").(int) * 2
			},
		},
		Actions: map[string]core.ActionFunc{
			"inc": func(self *core.View, _ ...any) (any, error) {
				return nil, self.Set("count", self.Get("count").(int)+1)
			},
			"set": func(self *core.View, args ...any) (any, error) {
				return nil, self.Set("count", args[0])
			},
		},
	}
}

func mustStore(t *testing.T, eng *core.Engine, def core.Definition) *core.Store {
	t.Helper()
	s, err := eng.CreateStore(def)
	require.NoError(t, err)
	return s
}

func call(t *testing.T, s *core.Store, name string, args ...any) any {
	t.Helper()
	out, err := s.Call(name, args...)
	require.NoError(t, err)
	return out
}
