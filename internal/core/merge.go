package core

import (
	"strconv"
)

// merge applies an object or array written over an existing container of the
// same kind as a structural diff, so only the leaves that actually differ are
// invalidated. It reports false when the shapes differ and the write must
// fall back to a full replacement.
func (e *Engine) merge(n *node, key string, value any) (bool, error) {
	current, _ := readRaw(n.latest(), key)
	if current == nil {
		return false, nil
	}
	if c, ok := current.(*node); ok {
		current = c.latest()
	}
	switch value.(type) {
	case map[string]any:
		if _, ok := current.(map[string]any); !ok {
			return false, nil
		}
	case []any:
		if _, ok := current.([]any); !ok {
			return false, nil
		}
	default:
		return false, nil
	}

	child, ok := n.child(key)
	if !ok {
		return false, nil
	}
	return true, e.mergeInto(child, value)
}

func (e *Engine) mergeInto(c *node, value any) error {
	switch v := value.(type) {
	case map[string]any:
		for _, k := range keysOf(c.latest()) {
			if _, keep := v[k]; keep {
				continue
			}
			if p := e.lookup(c.store, c.name+"."+k, false); p != nil && p.computed != nil {
				continue
			}
			if err := e.setData(true, c, k, nil); err != nil {
				return err
			}
		}
		for _, k := range keysOf(v) {
			if err := e.setData(false, c, k, v[k]); err != nil {
				return err
			}
		}
	case []any:
		for i, item := range v {
			if err := e.setData(false, c, strconv.Itoa(i), item); err != nil {
				return err
			}
		}
		if err := e.setData(false, c, lengthKey, len(v)); err != nil {
			return err
		}
	}
	return nil
}
