package rods

import (
	"context"

	sq "github.com/Masterminds/squirrel"
)

// Store is the narrow contract the mapper needs from the storage layer.
// *Session is the database/sql implementation; tests substitute their own.
//
// Failures are returned as-is; the mapper wraps them in *StorageError.
type Store interface {
	// Dialect decides placeholder format for statements built by queries.
	Dialect() Dialect

	// Rows runs a SELECT reading table and returns every row as a
	// column → value map. No rows is an empty slice, not an error.
	Rows(ctx context.Context, table string, stmt sq.Sqlizer) ([]Fields, error)

	// Insert writes payload into table and returns the generated value of
	// idField.
	Insert(ctx context.Context, table string, payload Fields, idField string) (any, error)

	// Update writes payload to the rows of table matching filter and
	// returns the number of affected rows.
	Update(ctx context.Context, table string, filter, payload Fields) (int64, error)
}
