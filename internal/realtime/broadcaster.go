package realtime

import "context"

// Subscription is a live, non-replayable feed of events for one user group.
// Events is closed once the subscription ends, whether the caller closed it,
// the subscriber was dropped for falling behind, or the broadcaster shut down.
type Subscription interface {
	ID() string
	UserID() string
	Events() <-chan []byte
	Close() error
}

// Broadcaster fans serialized events out to every subscriber of a user group.
// Publish is fire-and-forget: it never waits for subscribers to consume.
type Broadcaster interface {
	Publish(ctx context.Context, userID string, payload []byte) error
	Subscribe(ctx context.Context, userID string) (Subscription, error)
	// SubscriberCount reports the number of subscriptions this process holds for the user.
	SubscriberCount(userID string) int
	// ActiveUsers lists users with at least one local subscription.
	ActiveUsers() []string
	Close() error
}
