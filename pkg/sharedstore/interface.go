package sharedstore

import (
	"context"
	"time"
)

// Handler receives the payload of a message published on a subscribed channel.
type Handler func(payload []byte)

// CancelFunc stops a subscription's dispatch loop. Calling it more than once
// is safe.
type CancelFunc func()

// Store defines the shared state store consumed by the coordination engine:
// namespaced key-value access plus publish/subscribe channels. Publish is
// fire-and-forget; delivery failures are not surfaced to publishers.
type Store interface {
	// Get retrieves a value. A missing key is (nil, false, nil), not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Publish broadcasts payload to current subscribers of channel.
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe registers handler for messages on channel. The handler runs
	// on a dedicated dispatch goroutine until the returned cancel func is
	// called or ctx is done.
	Subscribe(ctx context.Context, channel string, handler Handler) (CancelFunc, error)

	// KeysWithPrefix lists keys beginning with prefix.
	KeysWithPrefix(ctx context.Context, prefix string) ([]string, error)

	// Delete removes keys, returning how many existed.
	Delete(ctx context.Context, keys ...string) (int, error)

	Close() error
}
