package tracking

import "context"

// Feed delivers position samples and errors for one member until unsubscribed.
type Feed interface {
	Subscribe(ctx context.Context, opts SubscribeOptions) (Subscription, error)
}

// Subscription is a live feed handle. Events is closed after Unsubscribe.
type Subscription interface {
	Events() <-chan FeedEvent
	Unsubscribe()
}

// FeedSource resolves the feed of a member's device.
type FeedSource interface {
	Feed(memberID string) (Feed, error)
}

// EventPublisher broadcasts session lifecycle events to other services.
type EventPublisher interface {
	PublishSessionEvent(ctx context.Context, event SessionEvent) error
}

// PushFeed is a FeedSource that accepts events pushed on behalf of devices.
type PushFeed interface {
	FeedSource
	Publish(memberID string, ev FeedEvent) int
}
