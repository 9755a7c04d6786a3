package domain

// Channel distinguishes direct subscriber chats from shared group channels.
type Channel string

const (
	ChannelDirect Channel = "direct"
	ChannelGroup  Channel = "group"
)

// Priority is the delivery tier. Priority subscribers are served strictly
// before normal subscribers for each alert fan-out.
type Priority string

const (
	PriorityNormal   Priority = "normal"
	PriorityPriority Priority = "priority"
)

// Subscriber is a read-only snapshot of one alert recipient.
// Ownership lives outside the core; the dispatcher reads a snapshot per
// dispatch.
type Subscriber struct {
	SubscriberID  int64 // chat id on the transport
	Channel       Channel
	Priority      Priority
	AlertsEnabled bool
}

// DeliveryState is the lifecycle of one (alert, subscriber) send.
type DeliveryState string

const (
	DeliveryQueued  DeliveryState = "queued"
	DeliverySending DeliveryState = "sending"
	DeliverySent    DeliveryState = "sent"
	DeliveryFailed  DeliveryState = "failed"
	DeliveryDead    DeliveryState = "dead"
)

// Final reports whether the state can never change again.
func (s DeliveryState) Final() bool {
	return s == DeliverySent || s == DeliveryDead
}

// DeliveryAttempt tracks one send. (AlertID, SubscriberID) is unique; once
// the state is final no future write changes it.
type DeliveryAttempt struct {
	AlertID      string
	SubscriberID int64
	State        DeliveryState
	Tries        int
	NextTryAt    int64 // Unix milliseconds; 0 when not scheduled
}
