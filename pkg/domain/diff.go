package domain

import (
	"reflect"
)

// SnapshotDiff represents the top-level changes between two plain store snapshots.
// It is designed to be serialized to JSON for partial updates on the client.
type SnapshotDiff struct {
	// Store identifies the snapshot owner.
	Store string `json:"store"`

	// Changes contains only changed, added or deleted keys.
	// For deletions, the key is present with a nil value.
	// Clients should merge these updates into their local copy.
	Changes map[string]any `json:"changes,omitempty"`
}

// Diff calculates the difference between two snapshots of the same store.
// If old is nil, the diff represents the entire new snapshot (initial load).
// It returns nil when nothing changed.
func Diff(store string, old, new map[string]any) *SnapshotDiff {
	if new == nil && old == nil {
		return nil
	}

	changes := make(map[string]any)

	for k, newVal := range new {
		oldVal, exists := old[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			changes[k] = newVal
		}
	}

	for k := range old {
		if _, exists := new[k]; !exists {
			changes[k] = nil
		}
	}

	if len(changes) == 0 {
		return nil
	}

	return &SnapshotDiff{
		Store:   store,
		Changes: changes,
	}
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SnapshotDiff) IsEmpty() bool {
	return d == nil || len(d.Changes) == 0
}
