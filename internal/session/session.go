// Package session holds short-lived per-user dialogue state outside the
// ledger. Entries expire on their own and are lost on restart.
package session

import "context"

// Store keeps one value of T per user id.
type Store[T any] interface {
	// Get returns the value for id and whether it was present.
	Get(ctx context.Context, id int64) (T, bool, error)
	Put(ctx context.Context, id int64, value T) error
	Delete(ctx context.Context, id int64) error
}
