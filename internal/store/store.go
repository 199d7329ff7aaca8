// Package store persists per-user pipeline progress for polling consumers.
package store

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/askdb/internal/model"
)

// Store is the status-store contract. One row per user; every write stamps
// last_updated. Concurrent pipelines for the same user interleave writes
// with last-write-wins semantics.
type Store interface {
	// Migrate creates the schema if it does not exist.
	Migrate(ctx context.Context) error

	// Clear removes all state for the user. Idempotent: clearing an
	// absent row is not an error.
	Clear(ctx context.Context, userID string) error

	// Upsert merge-writes the named fields, creating the row if it does
	// not exist. Unspecified columns keep the not-started sentinel.
	// Rejects fields outside model.StatusFields.
	Upsert(ctx context.Context, userID string, fields map[string]string) error

	// Read returns the user's row, or nil when none exists.
	Read(ctx context.Context, userID string) (*model.StatusRow, error)

	Close() error
}

// fieldNames validates the upsert fields against the column whitelist and
// returns them in a stable order.
func fieldNames(fields map[string]string) ([]string, error) {
	names := make([]string, 0, len(fields))
	for f := range fields {
		if !validField(f) {
			return nil, errInvalidField(f)
		}
		names = append(names, f)
	}
	sort.Strings(names)
	return names, nil
}

func errInvalidField(field string) error {
	return eris.Errorf("store: invalid status field %q", field)
}

func validField(field string) bool {
	for _, f := range model.StatusFields {
		if f == field {
			return true
		}
	}
	return false
}
