package core

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// set is an insertion-ordered set; delivery order of notifications follows
// subscription order.
type set[T comparable] struct {
	m *orderedmap.OrderedMap[T, struct{}]
}

func newSet[T comparable]() *set[T] {
	return &set[T]{m: orderedmap.New[T, struct{}]()}
}

func (s *set[T]) add(v T) bool {
	_, present := s.m.Set(v, struct{}{})
	return !present
}

func (s *set[T]) remove(v T) {
	s.m.Delete(v)
}

func (s *set[T]) has(v T) bool {
	_, ok := s.m.Get(v)
	return ok
}

func (s *set[T]) len() int {
	return s.m.Len()
}

// items returns a snapshot, safe to iterate while the set is modified.
func (s *set[T]) items() []T {
	out := make([]T, 0, s.m.Len())
	for pair := s.m.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}
