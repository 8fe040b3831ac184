package middleware

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/aretw0/vine/pkg/ports"
)

type piiMiddleware struct {
	next     ports.Storage
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks values of keys matching the patterns.
// Values that are not JSON objects are stored untouched.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.Storage) ports.Storage {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) SetItem(ctx context.Context, key string, value string) error {
	var doc map[string]any
	if err := json.Unmarshal([]byte(value), &doc); err != nil {
		return m.next.SetItem(ctx, key, value)
	}

	// Decoding already produced a private copy, so masking in place is safe.
	maskValue(doc, m.patterns)

	masked, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return m.next.SetItem(ctx, key, string(masked))
}

func (m *piiMiddleware) GetItem(ctx context.Context, key string) (string, error) {
	return m.next.GetItem(ctx, key)
}

func (m *piiMiddleware) RemoveItem(ctx context.Context, key string) error {
	return m.next.RemoveItem(ctx, key)
}

func (m *piiMiddleware) Keys(ctx context.Context) ([]string, error) {
	return m.next.Keys(ctx)
}

// Helpers

func maskValue(v any, patterns []*regexp.Regexp) {
	switch t := v.(type) {
	case map[string]any:
		for k, sub := range t {
			if matchesAny(k, patterns) {
				t[k] = "***"
				continue
			}
			maskValue(sub, patterns)
		}
	case []any:
		for _, sub := range t {
			maskValue(sub, patterns)
		}
	}
}

func matchesAny(key string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
