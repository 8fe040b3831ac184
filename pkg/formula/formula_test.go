package formula_test

import (
	"strings"
	"testing"

	"github.com/aretw0/vine/internal/core"
	"github.com/aretw0/vine/pkg/domain"
	"github.com/aretw0/vine/pkg/formula"
	"github.com/aretw0/vine/pkg/observe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_Paths(t *testing.T) {
	tests := []struct {
		expr string
		want []string
	}{
		{"price * qty", []string{"price", "qty"}},
		{"user.name + '!'", []string{"user.name"}},
		{"items[0].title", []string{"items.0.title"}},
		{"len(items) > 0 && user.age >= 18", []string{"items", "user.age"}},
		{"items[i]", []string{"i", "items"}},
		{"args[0] + count", []string{"count"}},
		{"upper(name)", []string{"name"}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			f, err := formula.Compile(tt.expr, formula.WithFunction("upper", func(p ...any) (any, error) {
				return strings.ToUpper(p[0].(string)), nil
			}))
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Paths())
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	_, err := formula.Compile("  ")
	assert.Error(t, err)

	_, err = formula.Compile("price *")
	assert.ErrorContains(t, err, "price *")
}

func cartStore(t *testing.T, eng *core.Engine) *core.Store {
	t.Helper()
	total, err := formula.Compile("price * qty")
	require.NoError(t, err)
	count, err := formula.Compile("len(items)")
	require.NoError(t, err)
	add, err := formula.Action([]formula.Step{
		{Append: "items", Value: "args[0]"},
		{Set: "qty", Value: "qty + 1"},
	})
	require.NoError(t, err)
	drop, err := formula.Action([]formula.Step{
		{Pop: "items"},
		{Delete: "note"},
	})
	require.NoError(t, err)

	s, err := eng.CreateStore(core.Definition{
		Name:  "Cart",
		State: map[string]any{"price": 3, "qty": 1, "items": []any{"a"}, "note": "n"},
		Computed: map[string]core.ComputedFunc{
			"total": total.Computed(),
			"count": count.Computed(),
		},
		Actions: map[string]core.ActionFunc{"add": add, "drop": drop},
	})
	require.NoError(t, err)
	return s
}

func TestFormula_ComputedTracksReferencedPaths(t *testing.T) {
	eng := core.NewEngine()
	s := cartStore(t, eng)

	var total, count any
	o := observe.New(eng, func() {
		total = s.View().Get("total")
		count = s.View().Get("count")
	})
	assert.Equal(t, 3, total)
	assert.Equal(t, 1, count)

	out, err := s.Call("add", "b")
	require.NoError(t, err)
	assert.Equal(t, 2, out, "an action returns its last step's value")
	eng.Tick()

	assert.Equal(t, 2, o.Renders())
	assert.Equal(t, 6, total)
	assert.Equal(t, 2, count, "containers are observed deeply")

	out, err = s.Call("drop")
	require.NoError(t, err)
	assert.Nil(t, out)
	eng.Tick()
	assert.Equal(t, 1, count)
	assert.False(t, s.View().Has("note"))
}

func TestAction_StepValidation(t *testing.T) {
	tests := []struct {
		name string
		step formula.Step
	}{
		{"no target", formula.Step{Value: "1"}},
		{"two targets", formula.Step{Set: "a", Delete: "b", Value: "1"}},
		{"set without value", formula.Step{Set: "a"}},
		{"pop with value", formula.Step{Pop: "a", Value: "1"}},
		{"bad expression", formula.Step{Set: "a", Value: "1 +"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := formula.Action([]formula.Step{tt.step})
			assert.Error(t, err)
		})
	}
}

func TestAction_TargetErrors(t *testing.T) {
	eng := core.NewEngine()
	bad, err := formula.Action([]formula.Step{{Append: "price", Value: "1"}})
	require.NoError(t, err)
	missing, err := formula.Action([]formula.Step{{Set: "nope.x", Value: "1"}})
	require.NoError(t, err)

	s, err := eng.CreateStore(core.Definition{
		State:   map[string]any{"price": 1},
		Actions: map[string]core.ActionFunc{"bad": bad, "missing": missing},
	})
	require.NoError(t, err)

	_, err = s.Call("bad")
	assert.ErrorIs(t, err, domain.ErrNotContainer)
	_, err = s.Call("missing")
	assert.ErrorIs(t, err, domain.ErrNotContainer)
	assert.False(t, eng.Pending())
}

func TestFormula_ContainerReadAfterWrite(t *testing.T) {
	eng := core.NewEngine()
	count, err := formula.Compile("len(items)")
	require.NoError(t, err)
	s, err := eng.CreateStore(core.Definition{
		Name:     "List",
		State:    map[string]any{"items": []any{1, 2}},
		Computed: map[string]core.ComputedFunc{"count": count.Computed()},
		Actions: map[string]core.ActionFunc{
			"push": func(self *core.View, args ...any) (any, error) {
				if err := self.Get("items").(*core.View).Append(args...); err != nil {
					return nil, err
				}
				return self.Get("count"), nil
			},
			"truncate": func(self *core.View, _ ...any) (any, error) {
				if err := self.Get("items").(*core.View).SetLen(0); err != nil {
					return nil, err
				}
				return self.Get("count"), nil
			},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 2, s.View().Get("count"))

	out, err := s.Call("push", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, out, "the formula sees the append before the finalize pass")

	out, err = s.Call("truncate")
	require.NoError(t, err)
	assert.Equal(t, 0, out)

	eng.Tick()
	assert.Equal(t, 0, s.View().Get("count"))
}
