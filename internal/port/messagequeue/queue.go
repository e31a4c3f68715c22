// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Handler processes a message received from the queue.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// Subject constants for NATS subjects used by CrewLink.
//
// Push notification subjects carry persisted agent messages; the ws hub
// subscriber fans them out to live connections. Publishing here is always
// best-effort: the message row in the store stays authoritative.
const (
	SubjectMessagePush = "messages.push" // messages.push.{role} or messages.push.broadcast
	SubjectAgentStatus = "agents.status" // agent online/offline announcements
)

// PushSubject returns the subject a message for the given target is
// published on. The target is a role name or the broadcast sentinel.
func PushSubject(target string) string {
	return SubjectMessagePush + "." + target
}
