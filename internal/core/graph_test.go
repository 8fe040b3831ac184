package core_test

import (
	"testing"

	"github.com/aretw0/vine/internal/core"
	"github.com/stretchr/testify/assert"
)

func TestStore_Dependencies(t *testing.T) {
	var calls int
	eng := core.NewEngine()
	s := mustStore(t, eng, cartDef(&calls))

	assert.Empty(t, s.Dependencies(), "no edges before the first read")
	assert.Equal(t, []core.ComputedProp{{Name: "Cart@S1.total", Dirty: true}}, s.Computeds())

	s.View().Get("total")

	assert.Equal(t, []core.Dependency{
		{Computed: "Cart@S1.total", Dep: "Cart@S1.price"},
		{Computed: "Cart@S1.total", Dep: "Cart@S1.qty"},
	}, s.Dependencies())
	assert.Equal(t, []core.ComputedProp{{Name: "Cart@S1.total"}}, s.Computeds())

	call(t, s, "reprice", 1, 1)
	assert.True(t, s.Computeds()[0].Dirty)
}
