package ports

import (
	"context"

	"github.com/codewired/razorwire/internal/hub"
)

// StreamHub defines the contract for channel-based message distribution.
type StreamHub interface {
	// Subscribe registers a new subscriber on the given channel and
	// returns the read-end of its queue. It never blocks.
	Subscribe(channel string) *hub.Subscription

	// Publish fans a message out to every live subscriber of the
	// channel. Per-subscriber delivery faults are absorbed; an error is
	// returned only for hub-level failures.
	Publish(channel, message string) error

	// Unsubscribe removes a subscription from its channel. Idempotent.
	Unsubscribe(channel string, sub *hub.Subscription)

	// ChannelCount returns the number of channels with live subscribers.
	ChannelCount() int

	// Channels returns the names of channels with live subscribers.
	Channels() []string

	// SubscriberCount returns the number of live subscribers on a channel.
	SubscriberCount(channel string) int
}

// ChannelAuthorizer decides whether a request may subscribe to a channel.
// The hub itself is authorization-agnostic; transports consult the
// authorizer before establishing a subscription.
type ChannelAuthorizer interface {
	CanSubscribe(ctx context.Context, channel string) bool
}

// AuthorizerFunc adapts a function to the ChannelAuthorizer interface.
type AuthorizerFunc func(ctx context.Context, channel string) bool

// CanSubscribe calls f(ctx, channel).
func (f AuthorizerFunc) CanSubscribe(ctx context.Context, channel string) bool {
	return f(ctx, channel)
}

// AllowAll returns an authorizer that permits every subscription.
func AllowAll() ChannelAuthorizer {
	return AuthorizerFunc(func(context.Context, string) bool { return true })
}
