// Package store provides the data access layer for discovered businesses.
//
// The store is the sole source of truth: pipeline components construct a
// fresh record per operation and hand it to Upsert. Correctness under
// concurrent writes for the same place relies entirely on the merge rule,
// not on in-process locking.
package store

import "database/sql"

// Store wraps the businesses database.
type Store struct {
	DB *sql.DB
}

// NewStore creates a Store from an already-opened database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}
