// Package serialize round-trips store trees that hold registered Go types
// through JSON, tagging each registered value with its type name.
package serialize

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/mitchellh/mapstructure"
)

// Wire keys of a tagged value:
//
//	{"__@@serial_cls": {"__@@serial_type": "<name>", "__@@serial_data": {...}}}
const (
	ClassKey = "__@@serial_cls"
	TypeKey  = "__@@serial_type"
	DataKey  = "__@@serial_data"
)

var (
	// ErrAlreadyRegistered is returned when a name or a type is registered twice.
	ErrAlreadyRegistered = errors.New("serial type already registered")
	// ErrUnknownType is returned when parsing a tagged value whose name is not registered.
	ErrUnknownType = errors.New("unknown serial type")
)

// Plainer is implemented by values that expose a plain JSON-shaped copy of
// themselves, such as store views.
type Plainer interface {
	Plain() any
}

type entry struct {
	name    string
	typ     reflect.Type // struct type
	pointer bool         // sample was a pointer; Parse returns pointers
}

// Registry maps type names to Go struct types.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*entry
	byType map[reflect.Type]*entry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*entry),
		byType: make(map[reflect.Type]*entry),
	}
}

// Register associates name with the struct type of sample. A pointer sample
// makes Parse produce pointers. Fields are mapped by their json tags.
func (r *Registry) Register(name string, sample any) error {
	t := reflect.TypeOf(sample)
	pointer := false
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
		pointer = true
	}
	if t == nil || t.Kind() != reflect.Struct {
		return fmt.Errorf("register %q: sample must be a struct or struct pointer, got %T", name, sample)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	if e, ok := r.byType[t]; ok {
		return fmt.Errorf("%w: %s is registered as %s", ErrAlreadyRegistered, t, e.name)
	}
	e := &entry{name: name, typ: t, pointer: pointer}
	r.byName[name] = e
	r.byType[t] = e
	return nil
}

// Names lists the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stringify encodes v as JSON, tagging every registered value.
func (r *Registry) Stringify(v any) (string, error) {
	tree, err := r.encode(v)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(tree)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// StringifyIndent is Stringify with indented output.
func (r *Registry) StringifyIndent(v any, indent string) (string, error) {
	tree, err := r.encode(v)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(tree, "", indent)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (r *Registry) encode(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case Plainer:
		return r.encode(t.Plain())
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			enc, err := r.encode(child)
			if err != nil {
				return nil, err
			}
			out[k] = enc
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			enc, err := r.encode(child)
			if err != nil {
				return nil, err
			}
			out[i] = enc
		}
		return out, nil
	}

	e := r.lookup(reflect.TypeOf(v))
	if e == nil {
		return v, nil
	}
	var fields map[string]any
	if err := decode(v, &fields); err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.name, err)
	}
	// Nested registered values inside fields are plain maps by now.
	return map[string]any{
		ClassKey: map[string]any{
			TypeKey: e.name,
			DataKey: fields,
		},
	}, nil
}

func (r *Registry) lookup(t reflect.Type) *entry {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byType[t]
}

// Parse decodes JSON produced by Stringify, rebuilding tagged values as
// their registered Go types.
func (r *Registry) Parse(s string) (any, error) {
	var tree any
	if err := json.Unmarshal([]byte(s), &tree); err != nil {
		return nil, err
	}
	return r.revive(tree)
}

func (r *Registry) revive(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		if cls, ok := t[ClassKey].(map[string]any); ok && len(t) == 1 {
			return r.instantiate(cls)
		}
		for k, child := range t {
			rev, err := r.revive(child)
			if err != nil {
				return nil, err
			}
			t[k] = rev
		}
		return t, nil
	case []any:
		for i, child := range t {
			rev, err := r.revive(child)
			if err != nil {
				return nil, err
			}
			t[i] = rev
		}
		return t, nil
	}
	return v, nil
}

func (r *Registry) instantiate(cls map[string]any) (any, error) {
	name, _ := cls[TypeKey].(string)
	r.mu.RLock()
	e := r.byName[name]
	r.mu.RUnlock()
	if e == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}

	ptr := reflect.New(e.typ)
	if err := decode(cls[DataKey], ptr.Interface()); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	if e.pointer {
		return ptr.Interface(), nil
	}
	return ptr.Elem().Interface(), nil
}

func decode(input, output any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           output,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}
