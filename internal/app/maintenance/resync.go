package maintenance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/charlesng35/notifystream/pkg/logger"
)

const defaultResyncSpec = "@every 5m"

// ActiveUserSource lists users with live sessions in this process.
type ActiveUserSource interface {
	ActiveUsers() []string
}

// StatePublisher republishes a batch of users' notification state and returns
// the number of users whose event could not be sent.
type StatePublisher interface {
	PublishAll(ctx context.Context, userIDs []string) int
}

// Resyncer periodically republishes the current notification state to every
// user connected to this process, so sessions that missed an event converge
// without reconnecting.
type Resyncer struct {
	users     ActiveUserSource
	publisher StatePublisher
	cron      *cron.Cron
	schedule  string
	timeout   time.Duration
	log       *zap.Logger
	started   bool
}

// Option customises the Resyncer.
type Option func(*Resyncer)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(r *Resyncer) {
		if c != nil {
			r.cron = c
		}
	}
}

// WithSchedule overrides the cron specification. An explicitly empty or "off"
// schedule disables the job.
func WithSchedule(spec string) Option {
	return func(r *Resyncer) {
		r.schedule = strings.TrimSpace(spec)
	}
}

// WithTimeout bounds a single resync round.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Resyncer) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// NewResyncer constructs a Resyncer running on the default schedule.
func NewResyncer(users ActiveUserSource, publisher StatePublisher, opts ...Option) *Resyncer {
	r := &Resyncer{
		users:     users,
		publisher: publisher,
		schedule:  defaultResyncSpec,
		timeout:   time.Minute,
		log:       logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.cron == nil {
		r.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return r
}

// Enabled reports whether Start will schedule the job.
func (r *Resyncer) Enabled() bool {
	return r.users != nil && r.publisher != nil && r.schedule != "" && !strings.EqualFold(r.schedule, "off")
}

// Start registers the resync job and launches the scheduler.
func (r *Resyncer) Start() error {
	if !r.Enabled() {
		return nil
	}
	if r.started {
		return errors.New("resync: already started")
	}

	if _, err := r.cron.AddFunc(r.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		r.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("resync: schedule %q: %w", r.schedule, err)
	}

	r.cron.Start()
	r.started = true
	return nil
}

// Stop halts the underlying scheduler, returning a context that is done once
// any running round completes.
func (r *Resyncer) Stop() context.Context {
	if r.cron == nil || !r.started {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return r.cron.Stop()
}

// RunOnce republishes to every active user and returns how many were attempted.
func (r *Resyncer) RunOnce(ctx context.Context) int {
	if r.users == nil || r.publisher == nil {
		return 0
	}

	users := r.users.ActiveUsers()
	if len(users) == 0 {
		return 0
	}

	if failed := r.publisher.PublishAll(ctx, users); failed > 0 {
		r.log.Warn("resync round incomplete",
			zap.Int("users", len(users)),
			zap.Int("failed", failed),
		)
	} else {
		r.log.Debug("resync round finished", zap.Int("users", len(users)))
	}
	return len(users)
}
