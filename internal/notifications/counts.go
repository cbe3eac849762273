package notifications

import (
	"context"
)

// CountSnapshot is the derived notification state of one user.
type CountSnapshot struct {
	Total  int64 `json:"total_notifications"`
	Read   int64 `json:"read_notifications"`
	Unread int64 `json:"unread_notifications"`
}

// Aggregator computes counts straight from the store on every call.
type Aggregator struct {
	store Store
}

// NewAggregator constructs an Aggregator.
func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// Counts returns the user's current totals.
func (a *Aggregator) Counts(ctx context.Context, userID string) (CountSnapshot, error) {
	total, err := a.store.CountActive(ctx, userID)
	if err != nil {
		return CountSnapshot{}, err
	}
	read, err := a.store.CountActiveRead(ctx, userID)
	if err != nil {
		return CountSnapshot{}, err
	}
	return CountSnapshot{Total: total, Read: read, Unread: total - read}, nil
}
