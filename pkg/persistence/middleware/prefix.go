package middleware

import (
	"context"
	"strings"

	"github.com/aretw0/vine/pkg/ports"
)

type prefixMiddleware struct {
	next   ports.Storage
	prefix string
}

// NewPrefixMiddleware namespaces every key under prefix, so several engines
// can share one backend. Keys only lists (and strips) keys inside the namespace.
func NewPrefixMiddleware(prefix string) Middleware {
	return func(next ports.Storage) ports.Storage {
		return &prefixMiddleware{next: next, prefix: prefix}
	}
}

func (m *prefixMiddleware) SetItem(ctx context.Context, key string, value string) error {
	return m.next.SetItem(ctx, m.prefix+key, value)
}

func (m *prefixMiddleware) GetItem(ctx context.Context, key string) (string, error) {
	return m.next.GetItem(ctx, m.prefix+key)
}

func (m *prefixMiddleware) RemoveItem(ctx context.Context, key string) error {
	return m.next.RemoveItem(ctx, m.prefix+key)
}

func (m *prefixMiddleware) Keys(ctx context.Context) ([]string, error) {
	all, err := m.next.Keys(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(all))
	for _, k := range all {
		if rest, ok := strings.CutPrefix(k, m.prefix); ok {
			keys = append(keys, rest)
		}
	}
	return keys, nil
}
