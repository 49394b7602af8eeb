// Package publisher sends run notifications to a message bus. Implementations
// live in subpackages: pubsub for Google Cloud Pub/Sub and memory for tests.
package publisher

import "context"

// Publisher publishes one JSON-encodable payload to a topic and returns the
// message ID assigned by the bus.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}
