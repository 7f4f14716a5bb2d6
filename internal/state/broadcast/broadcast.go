package broadcast

import (
	"context"
	"encoding/json"
)

// Update is a single key change fanned out to every sibling tab in the same
// broadcast scope. Origin identifies the publishing store so a tab can
// recognize its own echo; Value is the JSON encoding of the new value.
type Update struct {
	Origin string          `json:"origin"`
	Key    string          `json:"key"`
	Value  json.RawMessage `json:"value"`
}

// Transport carries store updates between sibling tabs sharing a scope.
// Delivery is at-least-once and order-preserving per sender; a transport may
// echo a tab's own updates back to it.
type Transport interface {
	// Publish sends an update to every tab in the scope.
	Publish(ctx context.Context, update *Update) error

	// Watch returns a channel of inbound updates. The channel is closed
	// when ctx is cancelled or the transport is closed.
	Watch(ctx context.Context) (<-chan *Update, error)

	// Close releases the transport's resources.
	Close() error
}
