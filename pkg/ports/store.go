package ports

import (
	"context"
)

// Storage defines the interface for persisting serialized store data.
// Values are opaque strings (the persistence layer writes JSON envelopes).
type Storage interface {
	// GetItem retrieves the value for key.
	// Returns domain.ErrNotFound if the key does not exist.
	GetItem(ctx context.Context, key string) (string, error)

	// SetItem persists value under key, replacing any previous value.
	SetItem(ctx context.Context, key string, value string) error

	// RemoveItem deletes key. Removing a missing key is not an error.
	RemoveItem(ctx context.Context, key string) error

	// Keys lists the stored keys.
	Keys(ctx context.Context) ([]string, error)
}
