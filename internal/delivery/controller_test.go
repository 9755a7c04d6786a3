package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"base-launch-radar/internal/domain"
	"base-launch-radar/internal/storage/memory"
	"base-launch-radar/internal/transport"
)

func testAlert(id string) *domain.Alert {
	return &domain.Alert{
		AlertID: id,
		Meta: domain.TokenMetadata{
			Address: common.HexToAddress("0x1000000000000000000000000000000000000001"),
			Symbol:  "RDT",
		},
		Score: domain.Score{Overall: 85, Risk: domain.RiskSafe},
	}
}

func sub(id int64, ch domain.Channel, prio domain.Priority) *domain.Subscriber {
	return &domain.Subscriber{SubscriberID: id, Channel: ch, Priority: prio, AlertsEnabled: true}
}

func newTestController(msgr transport.Messenger, journal *memory.DeliveryJournal, subs ...*domain.Subscriber) *Controller {
	return New(Options{
		Messenger:   msgr,
		Subscribers: memory.NewSubscriberStore(subs...),
		Journal:     journal,
		BackoffBase: time.Millisecond,
		BackoffCap:  8 * time.Millisecond,
		PriorityGap: time.Millisecond,
		NormalGap:   time.Millisecond,
	})
}

func TestFanOut_PriorityBeforeNormal(t *testing.T) {
	msgr := transport.NewStubMessenger()
	c := newTestController(msgr, memory.NewDeliveryJournal(),
		sub(1, domain.ChannelDirect, domain.PriorityNormal),
		sub(2, domain.ChannelDirect, domain.PriorityPriority),
		sub(3, domain.ChannelDirect, domain.PriorityNormal),
		sub(4, domain.ChannelDirect, domain.PriorityPriority),
	)

	c.FanOut(context.Background(), testAlert("a1"), false)

	sent := msgr.Sent()
	require.Len(t, sent, 4)
	// both priority chats come before any normal chat
	assert.ElementsMatch(t, []int64{2, 4}, []int64{sent[0].ChatID, sent[1].ChatID})
	assert.ElementsMatch(t, []int64{1, 3}, []int64{sent[2].ChatID, sent[3].ChatID})
}

func TestFanOut_GroupGating(t *testing.T) {
	msgr := transport.NewStubMessenger()
	journal := memory.NewDeliveryJournal()
	group := sub(100, domain.ChannelGroup, domain.PriorityNormal)
	direct := sub(1, domain.ChannelDirect, domain.PriorityNormal)
	muted := sub(2, domain.ChannelDirect, domain.PriorityNormal)
	muted.AlertsEnabled = false
	c := newTestController(msgr, journal, group, direct, muted)

	c.FanOut(context.Background(), testAlert("a1"), false)
	assert.Empty(t, msgr.SentTo(100), "group must not receive below the gate")
	assert.Len(t, msgr.SentTo(1), 1)
	assert.Empty(t, msgr.SentTo(2), "alerts disabled")

	c.FanOut(context.Background(), testAlert("a2"), true)
	assert.Len(t, msgr.SentTo(100), 1)
}

func TestSendTo_RetriableThenSuccess(t *testing.T) {
	msgr := transport.NewStubMessenger()
	msgr.FailNext(7, &transport.RetriableError{Err: errors.New("rate limited")})
	journal := memory.NewDeliveryJournal()
	c := newTestController(msgr, journal, sub(7, domain.ChannelDirect, domain.PriorityNormal))

	c.FanOut(context.Background(), testAlert("a1"), false)

	require.Len(t, msgr.SentTo(7), 1)
	attempt, err := journal.Get(context.Background(), "a1", 7)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliverySent, attempt.State)
	assert.Equal(t, 2, attempt.Tries)
}

func TestSendTo_DeadSubscriberMarkedAndSkipped(t *testing.T) {
	msgr := transport.NewStubMessenger()
	msgr.FailNext(7, &transport.DeadRecipientError{Err: errors.New("bot was blocked")})
	journal := memory.NewDeliveryJournal()
	c := newTestController(msgr, journal, sub(7, domain.ChannelDirect, domain.PriorityNormal))

	c.FanOut(context.Background(), testAlert("a1"), false)

	attempt, err := journal.Get(context.Background(), "a1", 7)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryDead, attempt.State)
	dead, err := journal.IsSubscriberDead(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, dead)

	// the next alert skips the dead subscriber entirely
	c.FanOut(context.Background(), testAlert("a2"), false)
	assert.Empty(t, msgr.SentTo(7))
	_, err = journal.Get(context.Background(), "a2", 7)
	assert.Error(t, err)
}

func TestSendTo_GivesUpAfterMaxTries(t *testing.T) {
	msgr := transport.NewStubMessenger()
	fails := make([]error, DefaultMaxTries)
	for i := range fails {
		fails[i] = &transport.RetriableError{Err: errors.New("still down")}
	}
	msgr.FailNext(7, fails...)
	journal := memory.NewDeliveryJournal()
	c := newTestController(msgr, journal, sub(7, domain.ChannelDirect, domain.PriorityNormal))

	c.FanOut(context.Background(), testAlert("a1"), false)

	assert.Empty(t, msgr.SentTo(7))
	attempt, err := journal.Get(context.Background(), "a1", 7)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryFailed, attempt.State)
	assert.Equal(t, DefaultMaxTries, attempt.Tries)
}

func TestSendTo_FinalStateNeverResent(t *testing.T) {
	msgr := transport.NewStubMessenger()
	journal := memory.NewDeliveryJournal()
	require.NoError(t, journal.Record(context.Background(), &domain.DeliveryAttempt{
		AlertID: "a1", SubscriberID: 7, State: domain.DeliverySent, Tries: 1,
	}))
	c := newTestController(msgr, journal, sub(7, domain.ChannelDirect, domain.PriorityNormal))

	c.FanOut(context.Background(), testAlert("a1"), false)

	assert.Empty(t, msgr.SentTo(7), "sent state is final, no re-delivery")
}

func TestBackoff_DoublesAndHonorsRetryAfter(t *testing.T) {
	c := New(Options{
		Messenger:   transport.NewStubMessenger(),
		Subscribers: memory.NewSubscriberStore(),
		Journal:     memory.NewDeliveryJournal(),
	})

	plain := errors.New("transient")
	assert.Equal(t, time.Second, c.backoff(1, plain))
	assert.Equal(t, 2*time.Second, c.backoff(2, plain))
	assert.Equal(t, 32*time.Second, c.backoff(6, plain))
	// doubling caps at 64s
	assert.Equal(t, 64*time.Second, c.backoff(8, plain))

	asked := &transport.RetriableError{Err: plain, RetryAfter: 10}
	assert.Equal(t, 10*time.Second, c.backoff(1, asked))
	// the service can never push the wait past the cap
	long := &transport.RetriableError{Err: plain, RetryAfter: 600}
	assert.Equal(t, 64*time.Second, c.backoff(1, long))
}

func TestDeliverAndRun(t *testing.T) {
	msgr := transport.NewStubMessenger()
	journal := memory.NewDeliveryJournal()
	c := newTestController(msgr, journal, sub(7, domain.ChannelDirect, domain.PriorityNormal))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, c.Deliver(ctx, testAlert("a1"), false))
	go func() { _ = c.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(msgr.SentTo(7)) == 1
	}, 3*time.Second, 10*time.Millisecond)
}
