// Package store provides PostgreSQL-backed, owner-scoped persistence for
// every record type. Each entity has a hand-written store implementing the
// generic Store interface consumed by the data service layer.
package store

import "context"

// Row is the minimal shape every stored record exposes.
type Row interface {
	RowID() string
	RowUserID() string
}

// Store is the uniform relational contract for an entity type T, its create
// form F and its partial-update patch P. All reads and writes are scoped to
// a single owner except the id-addressed operations, which derive the owner
// from the row itself.
type Store[T Row, F any, P any] interface {
	// SelectAll returns every row owned by userID.
	SelectAll(ctx context.Context, userID string) ([]T, error)

	// SelectByID returns the row with the given primary key, or
	// common.ErrNotFound.
	SelectByID(ctx context.Context, id string) (T, error)

	// SelectIDs returns the ids of every row owned by userID.
	SelectIDs(ctx context.Context, userID string) ([]string, error)

	// Insert creates one row with userID injected and returns it.
	Insert(ctx context.Context, userID string, form F) (T, error)

	// InsertBulk creates many rows in one statement. Empty input returns an
	// empty slice without touching the database.
	InsertBulk(ctx context.Context, userID string, forms []F) ([]T, error)

	// Update applies the non-nil fields of patch to the row with the given
	// id and returns the updated row, or common.ErrNotFound.
	Update(ctx context.Context, id string, patch P) (T, error)

	// Delete removes the row and returns its last state, or
	// common.ErrNotFound.
	Delete(ctx context.Context, id string) (T, error)

	// DeleteAll removes every row owned by userID.
	DeleteAll(ctx context.Context, userID string) error
}

// orLocal normalizes an empty source tag to "local".
func orLocal(source string) string {
	if source == "" {
		return "local"
	}
	return source
}
