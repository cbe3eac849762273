package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/charlesng35/notifystream/internal/models"
	"github.com/charlesng35/notifystream/pkg/logger"
	"github.com/charlesng35/notifystream/pkg/metrics"
	"github.com/charlesng35/notifystream/pkg/validator"
)

// CreateInput describes one triggering event to fan out.
type CreateInput struct {
	// ActorID is the user who triggered the event.
	ActorID string
	Message string
	// Instance is the object the event concerns, after the change.
	Instance any
	// Before is the object prior to an update; only used for PUT and PATCH.
	Before     any
	Method     string
	Recipients []string
	CustomInfo any
	// Model overrides the derived model name.
	Model string
	// Snapshotter overrides the service snapshotter for this call.
	Snapshotter Snapshotter
}

type createRules struct {
	ActorID string `json:"actor_id" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// FanoutResult lists what a Create call wrote.
type FanoutResult struct {
	Recipients []string `json:"recipients"`
	UIDs       []string `json:"uids"`
}

// Option customises a Service.
type Option func(*Service)

// WithSnapshotter replaces the default snapshotter.
func WithSnapshotter(snapshotter Snapshotter) Option {
	return func(s *Service) {
		if snapshotter != nil {
			s.snapshotter = snapshotter
		}
	}
}

// Service creates notifications and applies recipient actions, publishing the
// new state of every affected user after each successful write.
type Service struct {
	store       Store
	aggregator  *Aggregator
	publisher   *Publisher
	snapshotter Snapshotter
	log         *zap.Logger
}

// NewService constructs a Service.
func NewService(store Store, publisher *Publisher, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("notification service: store is required")
	}
	if publisher == nil {
		return nil, errors.New("notification service: publisher is required")
	}

	s := &Service{
		store:       store,
		aggregator:  NewAggregator(store),
		publisher:   publisher,
		snapshotter: DefaultSnapshotter{},
		log:         logger.WithModule("notifications"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create writes one ACTIVE, unread record per distinct recipient in a single
// transaction and then publishes to each of them. An empty recipient list is a
// successful no-op.
func (s *Service) Create(ctx context.Context, input CreateInput) (FanoutResult, error) {
	rules := createRules{
		ActorID: strings.TrimSpace(input.ActorID),
		Message: strings.TrimSpace(input.Message),
	}
	if err := validator.ValidateStruct(rules); err != nil {
		return FanoutResult{}, asValidationError(err)
	}

	method, ok := models.ParseMethod(input.Method)
	if !ok {
		return FanoutResult{}, &ValidationError{Field: "method", Reason: "unknown method " + string(method)}
	}

	recipients := uniqueRecipients(input.Recipients)
	if len(recipients) == 0 {
		return FanoutResult{Recipients: []string{}, UIDs: []string{}}, nil
	}

	payload, err := s.buildPayload(input, rules.Message, method)
	if err != nil {
		return FanoutResult{}, err
	}

	var customInfo datatypes.JSON
	if input.CustomInfo != nil {
		raw, err := json.Marshal(input.CustomInfo)
		if err != nil {
			return FanoutResult{}, &ValidationError{Field: "custom_info", Reason: err.Error()}
		}
		customInfo = datatypes.JSON(raw)
	}

	records := make([]models.Notification, 0, len(recipients))
	uids := make([]string, 0, len(recipients))
	for _, recipientID := range recipients {
		uid := uuid.NewString()
		uids = append(uids, uid)
		records = append(records, models.Notification{
			UID:         uid,
			RecipientID: recipientID,
			Payload:     datatypes.NewJSONType(payload),
			IsRead:      false,
			CustomInfo:  customInfo,
			CreatedByID: rules.ActorID,
			Status:      models.NotificationActive,
		})
	}

	if err := s.store.BatchInsert(ctx, records); err != nil {
		return FanoutResult{}, err
	}
	metrics.NotificationsCreated.Add(float64(len(records)))

	s.log.Debug("notification fanned out",
		zap.String("actor_id", rules.ActorID),
		zap.Int("recipients", len(recipients)),
		zap.String("method", string(method)),
	)

	s.publisher.PublishAll(context.WithoutCancel(ctx), recipients)

	return FanoutResult{Recipients: recipients, UIDs: uids}, nil
}

// Apply runs a recipient action scoped to userID and returns the user's
// counts afterwards. UNDEFINED changes nothing and publishes nothing.
func (s *Service) Apply(ctx context.Context, userID string, action Action, uids []string) (CountSnapshot, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return CountSnapshot{}, &ValidationError{Field: "user_id", Reason: "is required"}
	}

	action, ok := ParseAction(string(action))
	if !ok {
		return CountSnapshot{}, &ValidationError{Field: "action", Reason: "unknown action " + string(action)}
	}

	if action.requiresUIDs() && len(cleanUIDs(uids)) == 0 {
		return CountSnapshot{}, &ValidationError{Field: "uids", Reason: "at least one uid is required for " + string(action)}
	}

	var err error
	switch action {
	case ActionMarkAsRead:
		_, err = s.store.UpdateReadFlag(ctx, userID, uids, true)
	case ActionMarkAsRemoved:
		_, err = s.store.UpdateStatus(ctx, userID, uids, models.NotificationRemoved)
	case ActionMarkAllAsRead:
		_, err = s.store.MarkAllRead(ctx, userID)
	case ActionRemovedAll:
		_, err = s.store.RemoveAll(ctx, userID)
	case ActionUndefined:
		return s.aggregator.Counts(ctx, userID)
	}
	if err != nil {
		metrics.NotificationActions.WithLabelValues(string(action), "error").Inc()
		return CountSnapshot{}, err
	}
	metrics.NotificationActions.WithLabelValues(string(action), "ok").Inc()

	s.publisher.PublishAll(context.WithoutCancel(ctx), []string{userID})

	return s.aggregator.Counts(ctx, userID)
}

// Counts returns the user's current counts.
func (s *Service) Counts(ctx context.Context, userID string) (CountSnapshot, error) {
	return s.aggregator.Counts(ctx, strings.TrimSpace(userID))
}

func (s *Service) buildPayload(input CreateInput, message string, method models.Method) (models.NotificationPayload, error) {
	snapshotter := s.snapshotter
	if input.Snapshotter != nil {
		snapshotter = input.Snapshotter
	}

	instance, err := snapshotter.Snapshot(input.Instance)
	if err != nil {
		return models.NotificationPayload{}, &ValidationError{Field: "instance", Reason: err.Error()}
	}

	changed := map[string]models.FieldChange{}
	if method.IsUpdate() && input.Before != nil {
		before, err := snapshotter.Snapshot(input.Before)
		if err != nil {
			return models.NotificationPayload{}, &ValidationError{Field: "before", Reason: err.Error()}
		}
		changed = Diff(before, instance)
	}

	model := strings.TrimSpace(input.Model)
	if model == "" {
		model = modelName(input.Instance)
	}

	return models.NotificationPayload{
		Message:     message,
		Model:       model,
		Instance:    instance,
		Method:      method,
		ChangedData: changed,
	}, nil
}

func asValidationError(err error) error {
	var failures validator.ValidationErrors
	if errors.As(err, &failures) {
		if first, ok := failures.First(); ok {
			return &ValidationError{Field: first.Field, Reason: first.Tag}
		}
	}
	return &ValidationError{Field: "input", Reason: err.Error()}
}

func uniqueRecipients(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
