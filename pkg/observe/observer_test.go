package observe_test

import (
	"testing"

	"github.com/aretw0/vine/internal/core"
	"github.com/aretw0/vine/pkg/observe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, eng *core.Engine) *core.Store {
	t.Helper()
	s, err := eng.CreateStore(core.Definition{
		Name: "Todo",
		State: map[string]any{
			"filter": "all",
			"items":  []any{map[string]any{"title": "write", "done": false}},
		},
		Actions: map[string]core.ActionFunc{
			"filter": func(self *core.View, args ...any) (any, error) {
				return nil, self.Set("filter", args[0])
			},
			"toggle": func(self *core.View, args ...any) (any, error) {
				item := self.Path("items.0").(*core.View)
				return nil, item.Set("done", !item.Get("done").(bool))
			},
		},
	})
	require.NoError(t, err)
	return s
}

func TestObserver_RebuildsDependenciesEveryRender(t *testing.T) {
	eng := core.NewEngine()
	s := newStore(t, eng)

	var filter any
	o := observe.New(eng, func() {
		filter = s.View().Get("filter")
		if filter == "done" {
			s.View().Path("items.0.done")
		}
	})
	assert.Equal(t, 1, o.Renders())
	assert.Equal(t, []observe.Dependency{{Name: "Todo@S1.filter"}}, o.Dependencies())

	_, err := s.Call("filter", "done")
	require.NoError(t, err)
	eng.Tick()

	assert.Equal(t, 2, o.Renders())
	assert.Equal(t, "done", filter)
	assert.Equal(t, []observe.Dependency{
		{Name: "Todo@S1.filter"},
		{Name: "Todo@S1.items"},
		{Name: "Todo@S1.items.0"},
		{Name: "Todo@S1.items.0.done"},
	}, o.Dependencies())

	_, err = s.Call("toggle")
	require.NoError(t, err)
	eng.Tick()
	assert.Equal(t, 3, o.Renders())
}

func TestObserver_ObserveDeep(t *testing.T) {
	eng := core.NewEngine()
	s := newStore(t, eng)

	o := observe.New(eng, func() {
		s.View().Get("items").(*core.View).ObserveDeep()
	})
	require.Contains(t, o.Dependencies(), observe.Dependency{Name: "Todo@S1.items", Deep: true})

	_, err := s.Call("toggle")
	require.NoError(t, err)
	eng.Tick()
	assert.Equal(t, 2, o.Renders())
}

func TestObserver_Dispose(t *testing.T) {
	eng := core.NewEngine()
	s := newStore(t, eng)

	o := observe.New(eng, func() { s.View().Get("filter") })
	o.Dispose()

	_, err := s.Call("filter", "done")
	require.NoError(t, err)
	eng.Tick()

	assert.Equal(t, 1, o.Renders())
	assert.Empty(t, o.Dependencies())
	direct, deep := s.Prop("filter", false).SubscriberCount()
	assert.Zero(t, direct+deep)
}
