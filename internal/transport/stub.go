package transport

import (
	"context"
	"sync"
)

// SentMessage records one successful StubMessenger send.
type SentMessage struct {
	ChatID  int64
	Text    string
	Buttons []Button
}

// CallbackAnswer records one StubMessenger AnswerCallback call.
type CallbackAnswer struct {
	CallbackID string
	Text       string
}

// StubMessenger is an in-memory Messenger for tests. Failures are scripted
// per chat id and consumed in order.
type StubMessenger struct {
	mu       sync.Mutex
	sent     []SentMessage
	answers  []CallbackAnswer
	failures map[int64][]error
	nextID   int
	events   chan ButtonPress
}

// NewStubMessenger creates an empty stub.
func NewStubMessenger() *StubMessenger {
	return &StubMessenger{
		failures: make(map[int64][]error),
		events:   make(chan ButtonPress, 16),
	}
}

// FailNext queues errors to be returned by upcoming sends to chatID, in
// order, before sends start succeeding again.
func (s *StubMessenger) FailNext(chatID int64, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[chatID] = append(s.failures[chatID], errs...)
}

// Sent returns a copy of everything successfully sent so far.
func (s *StubMessenger) Sent() []SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SentMessage(nil), s.sent...)
}

// SentTo returns the successful sends for one chat.
func (s *StubMessenger) SentTo(chatID int64) []SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []SentMessage
	for _, m := range s.sent {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

// Press injects a button event as if a subscriber tapped it.
func (s *StubMessenger) Press(p ButtonPress) {
	s.events <- p
}

func (s *StubMessenger) SendMessage(_ context.Context, chatID int64, text string, buttons []Button) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if queue := s.failures[chatID]; len(queue) > 0 {
		err := queue[0]
		s.failures[chatID] = queue[1:]
		return 0, err
	}

	s.nextID++
	s.sent = append(s.sent, SentMessage{ChatID: chatID, Text: text, Buttons: buttons})
	return s.nextID, nil
}

func (s *StubMessenger) EditMessage(_ context.Context, chatID int64, _ int, text string, buttons []Button) error {
	_, err := s.SendMessage(context.Background(), chatID, text, buttons)
	return err
}

func (s *StubMessenger) AnswerCallback(_ context.Context, callbackID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers = append(s.answers, CallbackAnswer{CallbackID: callbackID, Text: text})
	return nil
}

// Answers returns a copy of every callback answered so far.
func (s *StubMessenger) Answers() []CallbackAnswer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CallbackAnswer(nil), s.answers...)
}

func (s *StubMessenger) Events() <-chan ButtonPress {
	return s.events
}

// Verify interface compliance at compile time.
var _ Messenger = (*StubMessenger)(nil)
