package core

import (
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/aretw0/vine/pkg/domain"
)

const lengthKey = "length"

// validKey reports whether key may name an object property.
// Dotted keys would corrupt prop paths and #-prefixed keys are private.
func validKey(key string) bool {
	return key != "" && !strings.Contains(key, ".") && !strings.HasPrefix(key, "#")
}

// arrayIndex parses a canonical non-negative decimal index.
func arrayIndex(key string) (int, bool) {
	if key == "" || (len(key) > 1 && key[0] == '0') {
		return 0, false
	}
	i, err := strconv.Atoi(key)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

func isArray(v any) bool {
	_, ok := v.([]any)
	return ok
}

func isFunc(v any) bool {
	return v != nil && reflect.TypeOf(v).Kind() == reflect.Func
}

// readRaw returns the stored value at key, which may be a *node.
func readRaw(c any, key string) (any, bool) {
	switch c := c.(type) {
	case map[string]any:
		v, ok := c[key]
		return v, ok
	case []any:
		if key == lengthKey {
			return len(c), true
		}
		if i, ok := arrayIndex(key); ok && i < len(c) {
			return c[i], true
		}
	}
	return nil, false
}

func hasKey(c any, key string) bool {
	_, ok := readRaw(c, key)
	return ok
}

func keysOf(c any) []string {
	switch c := c.(type) {
	case map[string]any:
		keys := make([]string, 0, len(c))
		for k := range c {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys
	case []any:
		keys := make([]string, len(c))
		for i := range c {
			keys[i] = strconv.Itoa(i)
		}
		return keys
	}
	return nil
}

// shallowClone copies the container, keeping child nodes shared.
func shallowClone(c any) any {
	switch c := c.(type) {
	case map[string]any:
		out := make(map[string]any, len(c))
		for k, v := range c {
			out[k] = v
		}
		return out
	case []any:
		out := make([]any, len(c))
		copy(out, c)
		return out
	}
	return c
}

// writeRaw applies a write to a private draft and returns the (possibly
// reallocated) container.
func writeRaw(c any, key string, value any) any {
	switch c := c.(type) {
	case map[string]any:
		c[key] = value
		return c
	case []any:
		if key == lengthKey {
			return resize(c, value.(int))
		}
		i, _ := arrayIndex(key)
		if i >= len(c) {
			c = resize(c, i+1)
		}
		c[i] = value
		return c
	}
	return c
}

func deleteRaw(c any, key string) any {
	switch c := c.(type) {
	case map[string]any:
		delete(c, key)
		return c
	case []any:
		if i, ok := arrayIndex(key); ok && i < len(c) {
			c[i] = nil
		}
		return c
	}
	return c
}

func resize(c []any, n int) []any {
	if n <= len(c) {
		return c[:n:n]
	}
	out := make([]any, n)
	copy(out, c)
	return out
}

// checkKey validates key against the kind of container it addresses.
func checkKey(c any, key string) error {
	if isArray(c) {
		if key == lengthKey {
			return nil
		}
		if _, ok := arrayIndex(key); ok {
			return nil
		}
		return domain.ErrInvalidKey
	}
	if !validKey(key) {
		return domain.ErrInvalidKey
	}
	return nil
}

// normalize deep-copies JSON-shaped containers so the engine never aliases
// caller-owned maps or slices, rejecting invalid keys anywhere in the tree.
// Views are detached into plain copies of their current value.
func normalize(v any) (any, error) {
	switch v := v.(type) {
	case *View:
		if v == nil {
			return nil, nil
		}
		return plain(v.node.latest()), nil
	case *node:
		return plain(v.latest()), nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, child := range v {
			if !validKey(k) {
				return nil, domain.ErrInvalidKey
			}
			nc, err := normalize(child)
			if err != nil {
				return nil, err
			}
			out[k] = nc
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			nc, err := normalize(child)
			if err != nil {
				return nil, err
			}
			out[i] = nc
		}
		return out, nil
	}
	return v, nil
}

// plain converts a stored value into ordinary nested maps and slices,
// unwrapping child nodes to their latest value.
func plain(v any) any {
	switch v := v.(type) {
	case *node:
		return plain(v.latest())
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, child := range v {
			out[k] = plain(child)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = plain(child)
		}
		return out
	}
	return v
}

// sameValue is identity comparison in the spirit of ===: containers, pointers
// and funcs compare by reference, comparable values by ==. It never panics on
// uncomparable dynamic types.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Map, reflect.Pointer, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	}
	if va.Comparable() && vb.Comparable() {
		return va.Equal(vb)
	}
	return reflect.DeepEqual(a, b)
}
