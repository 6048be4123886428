// Package interfaces defines service contracts for Intellivest
package interfaces

import (
	"context"
	"encoding/json"
)

// ChangeFunc receives the new value of a key. A nil value means the key was deleted.
type ChangeFunc func(key string, value json.RawMessage)

// DocumentStore is a durable mapping from key to JSON value with change
// notification. Implementations must be safe for concurrent use.
type DocumentStore interface {
	// Read returns the value for key. found is false when the key is absent.
	Read(ctx context.Context, key string) (value json.RawMessage, found bool, err error)

	// Write replaces the value for key and notifies subscribers.
	Write(ctx context.Context, key string, value json.RawMessage) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Subscribe registers fn for changes to key and returns a function that
	// removes the subscription. fn must not block.
	Subscribe(key string, fn ChangeFunc) (unsubscribe func())

	Close() error
}
