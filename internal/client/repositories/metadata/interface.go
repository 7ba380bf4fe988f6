// Package metadata is the client's local key/value store. It caches the
// server endpoint, username, and the wrapped vault key bundle so the vault
// can be unlocked offline.
package metadata

import "context"

type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
