package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/charlesng35/notifystream/internal/models"
	"github.com/charlesng35/notifystream/internal/realtime"
	"github.com/charlesng35/notifystream/pkg/logger"
	"github.com/charlesng35/notifystream/pkg/metrics"
)

// NotificationView is the wire form of a record in enhanced events.
type NotificationView struct {
	ID         string                     `json:"id"`
	UID        string                     `json:"uid"`
	User       models.UserRef             `json:"user"`
	Payload    models.NotificationPayload `json:"payload"`
	IsRead     bool                       `json:"is_read"`
	CustomInfo datatypes.JSON             `json:"custom_info,omitempty"`
	CreatedBy  models.UserRef             `json:"created_by"`
	Status     models.NotificationStatus  `json:"status"`
	CreatedAt  time.Time                  `json:"created_at"`
	UpdatedAt  time.Time                  `json:"updated_at"`
}

// NewNotificationView maps a stored record to its wire form.
func NewNotificationView(row models.Notification) NotificationView {
	return NotificationView{
		ID:         row.ID,
		UID:        row.UID,
		User:       row.Recipient.Ref(row.RecipientID),
		Payload:    row.Payload.Data(),
		IsRead:     row.IsRead,
		CustomInfo: row.CustomInfo,
		CreatedBy:  row.CreatedBy.Ref(row.CreatedByID),
		Status:     row.Status,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
}

// EnhancedEvent carries the counts together with every non-removed record.
type EnhancedEvent struct {
	CountSnapshot
	Notifications []NotificationView `json:"notifications"`
}

// PublisherConfig is fixed at startup.
type PublisherConfig struct {
	// Enhanced attaches the full list of ACTIVE records to every event.
	Enhanced bool
}

// Publisher renders per-user state events and hands them to the broadcaster.
type Publisher struct {
	aggregator  *Aggregator
	store       Store
	broadcaster realtime.Broadcaster
	enhanced    bool
	log         *zap.Logger
}

// NewPublisher constructs a Publisher. A nil broadcaster renders events without sending them.
func NewPublisher(store Store, broadcaster realtime.Broadcaster, cfg PublisherConfig) *Publisher {
	return &Publisher{
		aggregator:  NewAggregator(store),
		store:       store,
		broadcaster: broadcaster,
		enhanced:    cfg.Enhanced,
		log:         logger.WithModule("notifications"),
	}
}

// Enhanced reports whether events include the notification list.
func (p *Publisher) Enhanced() bool {
	return p.enhanced
}

// Render builds the serialized state event for the user.
func (p *Publisher) Render(ctx context.Context, userID string) ([]byte, error) {
	counts, err := p.aggregator.Counts(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !p.enhanced {
		return json.Marshal(counts)
	}

	rows, err := p.store.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	event := EnhancedEvent{
		CountSnapshot: counts,
		Notifications: make([]NotificationView, 0, len(rows)),
	}
	for _, row := range rows {
		event.Notifications = append(event.Notifications, NewNotificationView(row))
	}
	return json.Marshal(event)
}

// InitialMessage renders the first frame of a new session.
func (p *Publisher) InitialMessage(ctx context.Context, userID string) ([]byte, error) {
	return p.Render(ctx, userID)
}

// Publish recomputes the user's state and broadcasts it. Failures are
// reported as *realtime.PublishError and never affect stored state.
func (p *Publisher) Publish(ctx context.Context, userID string) error {
	if p.broadcaster == nil {
		return nil
	}

	payload, err := p.Render(ctx, userID)
	if err == nil {
		err = p.broadcaster.Publish(ctx, userID, payload)
	}
	if err != nil {
		metrics.RealtimePublishes.WithLabelValues("error").Inc()
		var pubErr *realtime.PublishError
		if !errors.As(err, &pubErr) {
			err = &realtime.PublishError{UserID: userID, Err: err}
		}
		return err
	}

	metrics.RealtimePublishes.WithLabelValues("ok").Inc()
	return nil
}

// PublishAll publishes to every user, logging failures at warn. It returns the
// number of users whose event could not be delivered.
func (p *Publisher) PublishAll(ctx context.Context, userIDs []string) int {
	failed := 0
	for _, userID := range userIDs {
		if err := p.Publish(ctx, userID); err != nil {
			failed++
			p.log.Warn("publish notification state",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
	}
	return failed
}
