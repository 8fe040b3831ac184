package middleware_test

import (
	"context"
	"sort"

	"github.com/aretw0/vine/pkg/domain"
	"github.com/aretw0/vine/pkg/ports"
)

// MockStore is a simple map-based storage for testing middleware.
type MockStore struct {
	data map[string]string
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]string),
	}
}

func (s *MockStore) SetItem(ctx context.Context, key string, value string) error {
	s.data[key] = value
	return nil
}

func (s *MockStore) GetItem(ctx context.Context, key string) (string, error) {
	value, ok := s.data[key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return value, nil
}

func (s *MockStore) RemoveItem(ctx context.Context, key string) error {
	delete(s.data, key)
	return nil
}

func (s *MockStore) Keys(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

var _ ports.Storage = (*MockStore)(nil)
