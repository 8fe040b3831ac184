package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/vine/internal/core"
	"github.com/aretw0/vine/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_CoalescesSynchronousWrites(t *testing.T) {
	b := &batchCounter{}
	eng := core.NewEngine(core.WithBatcher(b))
	s := mustStore(t, eng, counterDef())

	var seen []any
	c := newConsumer(eng, func() {
		seen = append(seen, s.View().Get("count"))
	})

	call(t, s, "inc")
	call(t, s, "inc")
	call(t, s, "inc")

	assert.Equal(t, 0, c.notified, "notification must wait for the finalize pass")
	assert.True(t, eng.Pending())
	assert.Equal(t, 3, s.View().Get("count"), "writes are visible immediately")

	eng.Tick()

	assert.Equal(t, 1, c.notified)
	assert.Equal(t, 1, b.batches)
	assert.Equal(t, []any{0, 3}, seen)
	assert.False(t, eng.Pending())
}

func TestScheduler_WriteThenRestoreIsSilent(t *testing.T) {
	b := &batchCounter{}
	eng := core.NewEngine(core.WithBatcher(b))
	s := mustStore(t, eng, counterDef())

	c := newConsumer(eng, func() { s.View().Get("count") })
	var listened int
	s.Subscribe(func([]string) { listened++ })

	call(t, s, "inc")
	call(t, s, "set", 0)
	eng.Tick()

	assert.Equal(t, 0, c.notified)
	assert.Equal(t, 0, listened)
	assert.Equal(t, 0, b.batches)
	assert.Equal(t, 0, s.View().Get("count"))
}

func TestScheduler_ListenerReceivesChangedNames(t *testing.T) {
	eng := core.NewEngine()
	s := mustStore(t, eng, counterDef())

	var got [][]string
	s.Subscribe(func([]string) { panic("boom") })
	unsubscribe := s.Subscribe(func(names []string) { got = append(got, names) })

	call(t, s, "inc")
	eng.Tick()
	require.Len(t, got, 1, "a panicking listener must not block the others")
	assert.Equal(t, []string{"Counter@S1.count"}, got[0])

	unsubscribe()
	call(t, s, "inc")
	eng.Tick()
	assert.Len(t, got, 1)
}

func TestScheduler_WritesDuringDeliveryStartFreshPass(t *testing.T) {
	eng := core.NewEngine()
	s := mustStore(t, eng, counterDef())

	var passes [][]string
	s.Subscribe(func(names []string) {
		passes = append(passes, names)
		if s.View().Get("count") == 1 {
			call(t, s, "set", 10)
		}
	})

	call(t, s, "inc")
	eng.Tick()

	assert.Len(t, passes, 2)
	assert.Equal(t, 10, s.View().Get("count"))
	assert.False(t, eng.Pending())
}

func TestScheduler_SubscriberPanicDoesNotStopDelivery(t *testing.T) {
	eng := core.NewEngine()
	s := mustStore(t, eng, counterDef())

	s.View().Get("count")
	p := s.Prop("count", false)
	require.NotNil(t, p)
	p.Subscribe(domain.NewCallback(func() { panic("render failed") }), false)

	c := newConsumer(eng, func() { s.View().Get("count") })
	call(t, s, "inc")
	eng.Tick()

	assert.Equal(t, 1, c.notified)
}

func TestScheduler_ExternalScheduler(t *testing.T) {
	var tasks []func()
	eng := core.NewEngine(core.WithScheduler(schedulerFunc(func(task func()) {
		tasks = append(tasks, task)
	})))
	s := mustStore(t, eng, counterDef())
	c := newConsumer(eng, func() { s.View().Get("count") })

	call(t, s, "inc")
	call(t, s, "inc")
	require.Len(t, tasks, 1, "only one continuation per turn")

	tasks[0]()
	assert.Equal(t, 1, c.notified)
}

type schedulerFunc func(task func())

func (f schedulerFunc) Schedule(task func()) { f(task) }

func TestEngine_LifecycleHooks(t *testing.T) {
	var writes, computes int
	var finals []*domain.FinalizeEvent
	eng := core.NewEngine(core.WithLifecycleHooks(domain.LifecycleHooks{
		OnWrite:    func(*domain.WriteEvent) { writes++ },
		OnCompute:  func(*domain.ComputeEvent) { computes++ },
		OnFinalize: func(e *domain.FinalizeEvent) { finals = append(finals, e) },
	}))
	s := mustStore(t, eng, counterDef())
	newConsumer(eng, func() { s.View().Get("double") })

	call(t, s, "inc")
	call(t, s, "inc")
	eng.Tick()

	assert.Equal(t, 2, writes)
	assert.Equal(t, 2, computes, "initial render and one recompute in finalize")
	require.Len(t, finals, 1)
	assert.Equal(t, []string{"Counter@S1"}, finals[0].Stores)
	assert.Equal(t, []string{"Counter@S1.count"}, finals[0].Changed)
	assert.Equal(t, 1, finals[0].Notified)
}

func TestEngine_ResetKeepsOrdinals(t *testing.T) {
	eng := core.NewEngine()
	first := mustStore(t, eng, counterDef())
	assert.Equal(t, "Counter@S1", first.Name())

	call(t, first, "inc")
	eng.Reset()

	assert.Empty(t, eng.Stores())
	assert.False(t, eng.Pending())

	second := mustStore(t, eng, counterDef())
	assert.Equal(t, "Counter@S2", second.Name())
	_, ok := eng.Store("Counter@S2")
	assert.True(t, ok)
}

func TestEngine_RunAndDo(t *testing.T) {
	eng := core.NewEngine()
	s := mustStore(t, eng, counterDef())

	var names []string
	s.Subscribe(func(n []string) { names = n })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	err := eng.Do(ctx, func() error {
		_, err := s.Call("inc")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Counter@S1.count"}, names, "Do returns after the finalize pass")

	err = eng.Do(ctx, func() error { panic("bad task") })
	assert.ErrorContains(t, err, "bad task")

	var count any
	require.NoError(t, eng.Do(ctx, func() error {
		count = s.View().Get("count")
		return nil
	}))
	assert.Equal(t, 1, count)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
