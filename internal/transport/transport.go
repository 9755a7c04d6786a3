// Package transport abstracts the chat service the pipeline delivers
// alerts through.
package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Button is one inline keyboard button under an alert message.
type Button struct {
	Label   string
	Payload string
}

// ButtonPress is an inbound button event from a subscriber.
type ButtonPress struct {
	SubscriberID int64
	CallbackID   string
	Payload      string
}

// Messenger is the surface the delivery controller needs from a chat
// service. Implementations classify their errors with RetriableError and
// DeadRecipientError so the controller can decide between backoff and
// giving up on the subscriber.
type Messenger interface {
	// SendMessage posts text with optional buttons, returning the message id.
	SendMessage(ctx context.Context, chatID int64, text string, buttons []Button) (int, error)

	// EditMessage rewrites a previously sent message in place.
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, buttons []Button) error

	// AnswerCallback acknowledges a button press with a toast.
	AnswerCallback(ctx context.Context, callbackID, text string) error

	// Events delivers inbound button presses.
	Events() <-chan ButtonPress
}

// RetriableError marks a send failure worth retrying: rate limit or
// transient transport trouble.
type RetriableError struct {
	Err        error
	RetryAfter int // seconds the service asked us to wait, 0 when unknown
}

func (e *RetriableError) Error() string { return fmt.Sprintf("retriable: %v", e.Err) }
func (e *RetriableError) Unwrap() error { return e.Err }

// DeadRecipientError marks a permanently unreachable chat: the subscriber
// blocked the bot or the chat no longer exists.
type DeadRecipientError struct {
	Err error
}

func (e *DeadRecipientError) Error() string { return fmt.Sprintf("dead recipient: %v", e.Err) }
func (e *DeadRecipientError) Unwrap() error { return e.Err }

// IsRetriable reports whether the error is worth a backoff retry.
func IsRetriable(err error) bool {
	var r *RetriableError
	return errors.As(err, &r)
}

// IsDead reports whether the recipient is gone for good.
func IsDead(err error) bool {
	var d *DeadRecipientError
	return errors.As(err, &d)
}

// BuyPayload builds the callback payload of the BUY button.
func BuyPayload(token common.Address, projectID string) string {
	return fmt.Sprintf("buy_%s_%s", token.Hex(), projectID)
}

// ParseBuyPayload extracts the token address and project id from a BUY
// callback payload. ok is false for foreign payloads.
func ParseBuyPayload(payload string) (token common.Address, projectID string, ok bool) {
	parts := strings.SplitN(payload, "_", 3)
	if len(parts) != 3 || parts[0] != "buy" || !common.IsHexAddress(parts[1]) {
		return common.Address{}, "", false
	}
	return common.HexToAddress(parts[1]), parts[2], true
}
