package core_test

import (
	"testing"

	"github.com/aretw0/vine/internal/core"
	"github.com/aretw0/vine/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cartDef(calls *int) core.Definition {
	return core.Definition{
		Name:  "Cart",
		State: map[string]any{"price": 2, "qty": 3, "note": ""},
		Computed: map[string]core.ComputedFunc{
			"total": func(self *core.View) any {
				*calls++
				return self.Get("price").(int) * self.Get("qty").(int)
			},
		},
		Actions: map[string]core.ActionFunc{
			"reprice": func(self *core.View, args ...any) (any, error) {
				if err := self.Set("price", args[0]); err != nil {
					return nil, err
				}
				if err := self.Set("qty", args[1]); err != nil {
					return nil, err
				}
				return self.Get("total"), nil
			},
			"note": func(self *core.View, args ...any) (any, error) {
				return nil, self.Set("note", args[0])
			},
		},
	}
}

func TestComputed_ReadAfterWriteSeesDraft(t *testing.T) {
	var calls int
	eng := core.NewEngine()
	s := mustStore(t, eng, cartDef(&calls))

	c := newConsumer(eng, func() { s.View().Get("total") })
	require.Equal(t, 1, calls)

	total := call(t, s, "reprice", 5, 4)
	assert.Equal(t, 20, total, "computed reflects writes before commit")
	assert.Equal(t, 2, calls, "two upstream writes, one read, one evaluation")

	eng.Tick()
	assert.Equal(t, 1, c.notified)
	assert.Equal(t, 2, calls, "finalize reuses the value computed during the turn")
	assert.Equal(t, 20, s.View().Get("total"))
}

func TestComputed_UnrelatedWritesDoNotRecompute(t *testing.T) {
	var calls int
	eng := core.NewEngine()
	s := mustStore(t, eng, cartDef(&calls))

	c := newConsumer(eng, func() { s.View().Get("total") })
	call(t, s, "note", "gift")
	eng.Tick()
	s.View().Get("total")

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, c.notified)
}

func TestComputed_LazyWithoutReaders(t *testing.T) {
	var calls int
	eng := core.NewEngine()
	s := mustStore(t, eng, cartDef(&calls))

	s.View().Get("total")
	for _, v := range []int{1, 3} {
		require.NoError(t, s.Produce(func(inner *core.View) error {
			if err := inner.Set("price", v); err != nil {
				return err
			}
			return inner.Set("qty", v)
		}))
	}
	eng.Tick()
	assert.Equal(t, 1, calls, "nobody observes total, so nothing recomputes")

	assert.Equal(t, 9, s.View().Get("total"))
	assert.Equal(t, 2, calls)
}

func TestComputed_UnchangedValueDoesNotNotify(t *testing.T) {
	eng := core.NewEngine()
	def := counterDef()
	def.Computed["even"] = func(self *core.View) any {
		return self.Get("count").(int)%2 == 0
	}
	s := mustStore(t, eng, def)

	// Warm the cache so the render only depends on the computed itself.
	s.View().Get("even")
	c := newConsumer(eng, func() { s.View().Get("even") })

	call(t, s, "set", 2)
	eng.Tick()
	assert.Equal(t, 0, c.notified)

	call(t, s, "set", 3)
	eng.Tick()
	assert.Equal(t, 1, c.notified)
}

func TestComputed_RestoredWithinTurnDoesNotNotify(t *testing.T) {
	eng := core.NewEngine()
	s := mustStore(t, eng, counterDef())
	s.View().Get("double")
	c := newConsumer(eng, func() { s.View().Get("double") })

	require.NoError(t, s.Produce(func(inner *core.View) error {
		require.NoError(t, inner.Set("count", 4))
		assert.Equal(t, 8, inner.Get("double"))
		require.NoError(t, inner.Set("count", 0))
		assert.Equal(t, 0, inner.Get("double"))
		return nil
	}))
	eng.Tick()

	assert.Equal(t, 0, c.notified)
}

func TestComputed_Cascade(t *testing.T) {
	eng := core.NewEngine()
	def := counterDef()
	quadCalls := 0
	def.Computed["quad"] = func(self *core.View) any {
		quadCalls++
		return self.Get("double").(int) * 2
	}
	s := mustStore(t, eng, def)

	s.View().Get("quad")
	c := newConsumer(eng, func() { s.View().Get("quad") })

	call(t, s, "inc")
	eng.Tick()

	assert.Equal(t, 1, c.notified)
	assert.Equal(t, 4, s.View().Get("quad"))
	assert.Equal(t, 2, quadCalls)
}

func TestComputed_CrossStore(t *testing.T) {
	eng := core.NewEngine()
	prices := mustStore(t, eng, core.Definition{
		Name:  "Prices",
		State: map[string]any{"price": 1},
		Actions: map[string]core.ActionFunc{
			"set": func(self *core.View, args ...any) (any, error) {
				return nil, self.Set("price", args[0])
			},
		},
	})
	summary := mustStore(t, eng, core.Definition{
		Name: "Summary",
		Computed: map[string]core.ComputedFunc{
			"doubled": func(*core.View) any {
				return prices.View().Get("price").(int) * 2
			},
		},
	})

	summary.View().Get("doubled")
	var got any
	c := newConsumer(eng, func() { got = summary.View().Get("doubled") })

	call(t, prices, "set", 2)
	eng.Tick()

	assert.Equal(t, 1, c.notified)
	assert.Equal(t, 4, got)
}

func TestComputed_ForeignSubtreeValue(t *testing.T) {
	eng := core.NewEngine()
	users := mustStore(t, eng, core.Definition{
		Name:  "Users",
		State: map[string]any{"profile": map[string]any{"name": "ada"}},
		Actions: map[string]core.ActionFunc{
			"rename": func(self *core.View, args ...any) (any, error) {
				return nil, self.Get("profile").(*core.View).Set("name", args[0])
			},
		},
	})
	session := mustStore(t, eng, core.Definition{
		Name: "Session",
		Computed: map[string]core.ComputedFunc{
			"profile": func(*core.View) any {
				return users.View().Get("profile")
			},
		},
	})

	session.View().Get("profile")
	var got any
	c := newConsumer(eng, func() { got = session.View().Get("profile") })
	before := got

	call(t, users, "rename", "grace")
	eng.Tick()

	assert.Equal(t, 1, c.notified)
	require.IsType(t, &core.View{}, got)
	assert.NotSame(t, before, got)
	assert.Equal(t, "grace", got.(*core.View).Get("name"))
}

func TestComputed_NestedOwner(t *testing.T) {
	eng := core.NewEngine()
	s := mustStore(t, eng, core.Definition{
		Name:  "People",
		State: map[string]any{"user": map[string]any{"first": "ada"}},
		Computed: map[string]core.ComputedFunc{
			"user.label": func(self *core.View) any {
				return self.Get("first").(string) + "!"
			},
		},
		Actions: map[string]core.ActionFunc{
			"replace": func(self *core.View, args ...any) (any, error) {
				return nil, self.Set("user", args[0])
			},
			"drop": func(self *core.View, _ ...any) (any, error) {
				return nil, self.Delete("user")
			},
		},
	})

	var label any
	newConsumer(eng, func() { label = s.View().Path("user.label") })
	assert.Equal(t, "ada!", label)

	call(t, s, "replace", map[string]any{"first": "grace"})
	eng.Tick()
	assert.Equal(t, "grace!", label, "replacing the owner invalidates the computed")

	stale := s.View().Get("user").(*core.View)
	call(t, s, "drop")
	eng.Tick()

	assert.Nil(t, label)
	assert.Equal(t, "grace!", stale.Get("label"), "an unresolvable owner serves the cached value")
}

func TestComputed_IsNotAssignable(t *testing.T) {
	eng := core.NewEngine()
	s := mustStore(t, eng, counterDef())

	err := s.Produce(func(inner *core.View) error {
		return inner.Set("double", 4)
	})
	assert.ErrorIs(t, err, domain.ErrComputedWrite)
	assert.False(t, eng.Pending())
}
