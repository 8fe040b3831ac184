package core

import (
	"testing"

	"github.com/aretw0/vine/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSameValue(t *testing.T) {
	m := map[string]any{"a": 1}
	s := []any{1}
	n := &node{}
	f := func() {}

	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"nil", nil, nil, true},
		{"nil vs zero", nil, 0, false},
		{"equal ints", 1, 1, true},
		{"int vs float", 1, 1.0, false},
		{"strings", "a", "a", true},
		{"same map", m, m, true},
		{"equal maps by content", m, map[string]any{"a": 1}, false},
		{"same slice", s, s, true},
		{"resliced", s, s[:0], false},
		{"same node", n, n, true},
		{"same func", f, f, true},
		{"uncomparable struct", struct{ v []int }{[]int{1}}, struct{ v []int }{[]int{1}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sameValue(tt.a, tt.b))
		})
	}
}

func TestArrayIndex(t *testing.T) {
	for key, want := range map[string]bool{"0": true, "12": true, "01": false, "-1": false, "x": false, "": false, "length": false} {
		_, ok := arrayIndex(key)
		assert.Equal(t, want, ok, key)
	}
}

func TestNormalize(t *testing.T) {
	in := map[string]any{"a": []any{map[string]any{"b": 1}}}
	out, err := normalize(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	in["a"].([]any)[0].(map[string]any)["b"] = 2
	assert.Equal(t, 1, out.(map[string]any)["a"].([]any)[0].(map[string]any)["b"], "caller containers are never aliased")

	_, err = normalize(map[string]any{"ok": map[string]any{"#private": true}})
	assert.ErrorIs(t, err, domain.ErrInvalidKey)
}

func TestWriteRawArrays(t *testing.T) {
	arr := []any{"a"}
	arr = writeRaw(arr, "2", "c").([]any)
	assert.Equal(t, []any{"a", nil, "c"}, arr)

	arr = writeRaw(arr, lengthKey, 1).([]any)
	assert.Equal(t, []any{"a"}, arr)

	v, ok := readRaw(arr, lengthKey)
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, []string{"0"}, keysOf(arr))
}

func TestSetPreservesInsertionOrder(t *testing.T) {
	s := newSet[string]()
	assert.True(t, s.add("b"))
	assert.True(t, s.add("a"))
	assert.False(t, s.add("b"))
	s.remove("c")
	assert.Equal(t, []string{"b", "a"}, s.items())
	assert.True(t, s.has("a"))
	assert.Equal(t, 2, s.len())
}
