// Package ttlstore is a small key/value store whose entries expire. The
// order API keeps idempotency keys in it.
package ttlstore

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned by Get for missing or expired keys.
var ErrNotFound = errors.New("ttlstore: key not found")

// Store holds byte values with a time to live.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// PutIfAbsent stores the value only when key is missing or expired and
	// reports whether it did.
	PutIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Expire removes key immediately.
	Expire(ctx context.Context, key string) error
}
