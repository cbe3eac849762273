package realtime

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/charlesng35/notifystream/pkg/logger"
	"github.com/charlesng35/notifystream/pkg/metrics"
)

// DefaultBufferSize is the per-subscriber event buffer.
const DefaultBufferSize = 64

// MemoryBroadcaster delivers events to subscribers within this process.
// Subscribers whose buffer is full are dropped rather than blocking Publish.
// All methods are safe for concurrent use.
type MemoryBroadcaster struct {
	mu         sync.RWMutex
	groups     map[string]map[*subscription]struct{}
	bufferSize int
	closed     bool
	log        *zap.Logger
}

// NewMemoryBroadcaster constructs an in-process broadcaster. Non-positive buffer
// sizes fall back to DefaultBufferSize.
func NewMemoryBroadcaster(bufferSize int) *MemoryBroadcaster {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &MemoryBroadcaster{
		groups:     make(map[string]map[*subscription]struct{}),
		bufferSize: bufferSize,
		log:        logger.WithModule("realtime"),
	}
}

// Subscribe joins the user's group. The subscription is released when ctx is
// cancelled or Close is called.
func (b *MemoryBroadcaster) Subscribe(ctx context.Context, userID string) (Subscription, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errEmptyUser
	}

	sub := &subscription{
		id:     uuid.NewString(),
		userID: userID,
		ch:     make(chan []byte, b.bufferSize),
		done:   make(chan struct{}),
		owner:  b,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBroadcasterClosed
	}
	group := b.groups[userID]
	if group == nil {
		group = make(map[*subscription]struct{})
		b.groups[userID] = group
	}
	group[sub] = struct{}{}
	b.mu.Unlock()

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				_ = sub.Close()
			case <-sub.done:
			}
		}()
	}

	return sub, nil
}

// Publish enqueues payload for every local subscriber of userID.
func (b *MemoryBroadcaster) Publish(_ context.Context, userID string, payload []byte) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errEmptyUser
	}

	var slow []*subscription

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBroadcasterClosed
	}
	for sub := range b.groups[userID] {
		if !sub.send(payload) {
			slow = append(slow, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range slow {
		b.log.Warn("dropping slow subscriber",
			zap.String("user_id", sub.userID),
			zap.String("subscription_id", sub.id),
		)
		metrics.RealtimeDrops.Inc()
		_ = sub.Close()
	}

	return nil
}

// SubscriberCount reports the size of the user's local group.
func (b *MemoryBroadcaster) SubscriberCount(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.groups[strings.TrimSpace(userID)])
}

// ActiveUsers returns the users with at least one local subscriber, sorted.
func (b *MemoryBroadcaster) ActiveUsers() []string {
	b.mu.RLock()
	users := make([]string, 0, len(b.groups))
	for userID := range b.groups {
		users = append(users, userID)
	}
	b.mu.RUnlock()

	sort.Strings(users)
	return users
}

// Close ends every subscription. It is safe to call more than once.
func (b *MemoryBroadcaster) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true

	var subs []*subscription
	for _, group := range b.groups {
		for sub := range group {
			subs = append(subs, sub)
		}
	}
	clear(b.groups)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.finish()
	}
	return nil
}

func (b *MemoryBroadcaster) remove(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	group := b.groups[sub.userID]
	if group == nil {
		return
	}
	delete(group, sub)
	if len(group) == 0 {
		delete(b.groups, sub.userID)
	}
}

type subscription struct {
	id     string
	userID string
	ch     chan []byte
	done   chan struct{}
	owner  *MemoryBroadcaster

	mu     sync.RWMutex
	closed bool
}

func (s *subscription) ID() string            { return s.id }
func (s *subscription) UserID() string        { return s.userID }
func (s *subscription) Events() <-chan []byte { return s.ch }

// Close leaves the group and closes the event channel. Idempotent.
func (s *subscription) Close() error {
	s.owner.remove(s)
	s.finish()
	return nil
}

func (s *subscription) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
	close(s.done)
}

// send reports false when the buffer is full. Closed subscriptions swallow the event.
func (s *subscription) send(payload []byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- payload:
		return true
	default:
		return false
	}
}
