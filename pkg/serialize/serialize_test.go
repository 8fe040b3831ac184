package serialize_test

import (
	"testing"

	"github.com/aretw0/vine"
	"github.com/aretw0/vine/pkg/serialize"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Tag struct {
	Label  string  `json:"label"`
	Weight float64 `json:"weight"`
}

func newRegistry(t *testing.T) *serialize.Registry {
	t.Helper()
	reg := serialize.NewRegistry()
	require.NoError(t, reg.Register("Point", Point{}))
	require.NoError(t, reg.Register("Tag", &Tag{}))
	return reg
}

func TestRegister_Errors(t *testing.T) {
	reg := newRegistry(t)

	tests := []struct {
		name   string
		key    string
		sample any
		target error
	}{
		{name: "duplicate name", key: "Point", sample: struct{ A int }{}, target: serialize.ErrAlreadyRegistered},
		{name: "duplicate type", key: "Point2", sample: &Point{}, target: serialize.ErrAlreadyRegistered},
		{name: "not a struct", key: "Number", sample: 3},
		{name: "nil sample", key: "Nil", sample: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Register(tt.key, tt.sample)
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
	assert.Equal(t, []string{"Point", "Tag"}, reg.Names())
}

func mapStore(t *testing.T) *vine.Store {
	t.Helper()
	eng := vine.New()
	store, err := eng.CreateStore(vine.Definition{
		Name: "Map",
		State: map[string]any{
			"title":  "map",
			"origin": Point{X: 1, Y: 2},
			"tags":   []any{&Tag{Label: "a", Weight: 0.5}},
		},
	})
	require.NoError(t, err)
	return store
}

func TestStringify_Golden(t *testing.T) {
	reg := newRegistry(t)
	out, err := reg.StringifyIndent(mapStore(t).View(), "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "map_store", []byte(out))
}

func TestParse_RoundTrip(t *testing.T) {
	reg := newRegistry(t)
	out, err := reg.Stringify(mapStore(t).View())
	require.NoError(t, err)

	parsed, err := reg.Parse(out)
	require.NoError(t, err)

	tree := parsed.(map[string]any)
	assert.Equal(t, "map", tree["title"])
	assert.Equal(t, Point{X: 1, Y: 2}, tree["origin"])
	assert.Equal(t, []any{&Tag{Label: "a", Weight: 0.5}}, tree["tags"])

	// A parsed tree is valid store state again.
	eng := vine.New()
	store, err := eng.CreateStore(vine.Definition{Name: "Copy", State: tree})
	require.NoError(t, err)
	assert.Equal(t, Point{X: 1, Y: 2}, store.View().Get("origin"))
}

func TestParse_UnregisteredValues(t *testing.T) {
	reg := newRegistry(t)

	out, err := reg.Stringify(map[string]any{"other": struct {
		Name string `json:"name"`
	}{Name: "plain"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"other":{"name":"plain"}}`, out)

	_, err = reg.Parse(`{"x":{"__@@serial_cls":{"__@@serial_type":"Missing","__@@serial_data":{}}}}`)
	assert.ErrorIs(t, err, serialize.ErrUnknownType)
}
