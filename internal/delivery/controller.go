package delivery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"base-launch-radar/internal/domain"
	"base-launch-radar/internal/observability"
	"base-launch-radar/internal/storage"
	"base-launch-radar/internal/transport"
)

const (
	// DefaultMaxTries bounds send attempts per (alert, subscriber).
	DefaultMaxTries = 6

	// DefaultBackoffBase is the first retry delay; it doubles per attempt.
	DefaultBackoffBase = time.Second

	// DefaultBackoffCap caps the retry delay.
	DefaultBackoffCap = 64 * time.Second

	// DefaultPriorityGap paces sends to priority-tier subscribers.
	DefaultPriorityGap = 30 * time.Millisecond

	// DefaultNormalGap paces sends to normal-tier subscribers.
	DefaultNormalGap = 50 * time.Millisecond

	// DefaultQueueSize bounds alerts waiting for fan-out.
	DefaultQueueSize = 256
)

// Options configures a Controller.
type Options struct {
	Messenger   transport.Messenger
	Subscribers storage.SubscriberStore
	Journal     storage.DeliveryJournal

	MaxTries    int
	BackoffBase time.Duration
	BackoffCap  time.Duration
	PriorityGap time.Duration
	NormalGap   time.Duration
	QueueSize   int

	Logger *log.Logger
}

type fanout struct {
	alert         *domain.Alert
	groupEligible bool
}

// Controller fans finished alerts out to subscribers. For each alert the
// priority tier is served strictly before the normal tier; sends within a
// tier are sequenced with a pacing gap. Every attempt is journaled so a
// restart never re-sends what already reached a final state.
type Controller struct {
	messenger   transport.Messenger
	subscribers storage.SubscriberStore
	journal     storage.DeliveryJournal
	maxTries    int
	backoffBase time.Duration
	backoffCap  time.Duration
	priorityGap time.Duration
	normalGap   time.Duration
	logger      *log.Logger

	queue chan fanout
}

// New creates a Controller from options, filling in defaults.
func New(opts Options) *Controller {
	c := &Controller{
		messenger:   opts.Messenger,
		subscribers: opts.Subscribers,
		journal:     opts.Journal,
		maxTries:    opts.MaxTries,
		backoffBase: opts.BackoffBase,
		backoffCap:  opts.BackoffCap,
		priorityGap: opts.PriorityGap,
		normalGap:   opts.NormalGap,
		logger:      opts.Logger,
	}
	if c.maxTries == 0 {
		c.maxTries = DefaultMaxTries
	}
	if c.backoffBase == 0 {
		c.backoffBase = DefaultBackoffBase
	}
	if c.backoffCap == 0 {
		c.backoffCap = DefaultBackoffCap
	}
	if c.priorityGap == 0 {
		c.priorityGap = DefaultPriorityGap
	}
	if c.normalGap == 0 {
		c.normalGap = DefaultNormalGap
	}
	if c.logger == nil {
		c.logger = log.New(log.Writer(), "[delivery] ", log.LstdFlags)
	}
	size := opts.QueueSize
	if size == 0 {
		size = DefaultQueueSize
	}
	c.queue = make(chan fanout, size)
	return c
}

// Deliver queues an alert for fan-out. Blocks only when the queue is full.
func (c *Controller) Deliver(ctx context.Context, alert *domain.Alert, groupEligible bool) error {
	select {
	case c.queue <- fanout{alert: alert, groupEligible: groupEligible}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("delivery queue: %w", ctx.Err())
	}
}

// Run serves queued fan-outs until the context is canceled.
func (c *Controller) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-c.queue:
			c.FanOut(ctx, f.alert, f.groupEligible)
		}
	}
}

// Drain sends what is already queued and returns; used during shutdown with
// a deadline-bounded context as the drain budget.
func (c *Controller) Drain(ctx context.Context) {
	for {
		select {
		case f := <-c.queue:
			c.FanOut(ctx, f.alert, f.groupEligible)
		default:
			return
		}
	}
}

// FanOut sends one alert to every eligible subscriber, priority tier first.
func (c *Controller) FanOut(ctx context.Context, alert *domain.Alert, groupEligible bool) {
	subs, err := c.subscribers.Snapshot(ctx)
	if err != nil {
		c.logger.Printf("subscriber snapshot failed for %s: %v", alert.AlertID, err)
		return
	}

	var priority, normal []*domain.Subscriber
	for _, s := range subs {
		switch s.Channel {
		case domain.ChannelDirect:
			if !s.AlertsEnabled {
				continue
			}
		case domain.ChannelGroup:
			if !groupEligible {
				continue
			}
		default:
			continue
		}
		if s.Priority == domain.PriorityPriority {
			priority = append(priority, s)
		} else {
			normal = append(normal, s)
		}
	}

	text, buttons := transport.FormatAlert(alert)

	c.sendTier(ctx, alert, priority, text, buttons, c.priorityGap, "priority")
	c.sendTier(ctx, alert, normal, text, buttons, c.normalGap, "normal")
}

func (c *Controller) sendTier(ctx context.Context, alert *domain.Alert, subs []*domain.Subscriber, text string, buttons []transport.Button, gap time.Duration, tier string) {
	observability.UpdateDeliveryQueue(tier, len(subs))
	for i, s := range subs {
		if ctx.Err() != nil {
			return
		}
		c.sendTo(ctx, alert, s, text, buttons)
		if i < len(subs)-1 && !sleepCtx(ctx, gap) {
			return
		}
	}
	observability.UpdateDeliveryQueue(tier, 0)
}

// sendTo runs the bounded retry loop for one subscriber.
func (c *Controller) sendTo(ctx context.Context, alert *domain.Alert, sub *domain.Subscriber, text string, buttons []transport.Button) {
	dead, err := c.journal.IsSubscriberDead(ctx, sub.SubscriberID)
	if err != nil {
		c.logger.Printf("dead lookup for %d: %v", sub.SubscriberID, err)
	} else if dead {
		return
	}

	// idempotency: never touch an attempt that already reached a final state
	if prev, err := c.journal.Get(ctx, alert.AlertID, sub.SubscriberID); err == nil && prev.State.Final() {
		return
	} else if err != nil && !errors.Is(err, storage.ErrNotFound) {
		c.logger.Printf("journal read for %s/%d: %v", alert.AlertID, sub.SubscriberID, err)
	}

	for try := 1; try <= c.maxTries; try++ {
		c.record(ctx, alert.AlertID, sub.SubscriberID, domain.DeliverySending, try, 0)

		_, sendErr := c.messenger.SendMessage(ctx, sub.SubscriberID, text, buttons)
		switch {
		case sendErr == nil:
			c.record(ctx, alert.AlertID, sub.SubscriberID, domain.DeliverySent, try, 0)
			observability.RecordSend("ok")
			return

		case transport.IsDead(sendErr):
			c.record(ctx, alert.AlertID, sub.SubscriberID, domain.DeliveryDead, try, 0)
			observability.RecordSend("dead")
			observability.RecordSubscriberDead()
			if err := c.journal.MarkSubscriberDead(ctx, sub.SubscriberID); err != nil {
				c.logger.Printf("mark dead %d: %v", sub.SubscriberID, err)
			}
			return

		default:
			// retriable, or unclassified which is treated as retriable
			delay := c.backoff(try, sendErr)
			observability.RecordSend("retriable")
			c.record(ctx, alert.AlertID, sub.SubscriberID, domain.DeliveryFailed, try,
				time.Now().Add(delay).UnixMilli())
			if try == c.maxTries {
				c.logger.Printf("gave up on %s/%d after %d tries: %v",
					alert.AlertID, sub.SubscriberID, try, sendErr)
				return
			}
			observability.RecordSendRetry()
			if !sleepCtx(ctx, delay) {
				return
			}
		}
	}
}

// backoff doubles per try from the base and honors a service-requested
// wait, both capped.
func (c *Controller) backoff(try int, err error) time.Duration {
	delay := c.backoffBase << uint(try-1)
	if delay > c.backoffCap {
		delay = c.backoffCap
	}

	var r *transport.RetriableError
	if errors.As(err, &r) && r.RetryAfter > 0 {
		asked := time.Duration(r.RetryAfter) * time.Second
		if asked > delay {
			delay = asked
		}
		if delay > c.backoffCap {
			delay = c.backoffCap
		}
	}
	return delay
}

func (c *Controller) record(ctx context.Context, alertID string, subscriberID int64, state domain.DeliveryState, tries int, nextTryAt int64) {
	err := c.journal.Record(ctx, &domain.DeliveryAttempt{
		AlertID:      alertID,
		SubscriberID: subscriberID,
		State:        state,
		Tries:        tries,
		NextTryAt:    nextTryAt,
	})
	if err != nil && !errors.Is(err, storage.ErrFinalState) {
		c.logger.Printf("journal write for %s/%d: %v", alertID, subscriberID, err)
	}
}

// sleepCtx waits for d, reporting false when the context ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
