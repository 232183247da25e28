package domain

import "context"

// KVStore is the durable key-value persistence the offline layer is
// built on. Single-key writes must be atomic; there are no multi-key
// transactions, a constraint the services are designed around.
type KVStore interface {
	// Get returns the stored value or nil if the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	RemoveMany(ctx context.Context, keys []string) error
	// Keys lists stored keys with the given prefix, in insertion order.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
