package transport

import (
	"context"
	"errors"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram adapts a Telegram bot to the Messenger interface.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	events chan ButtonPress
	logger *log.Logger
}

// NewTelegram dials the bot API and starts consuming updates.
func NewTelegram(token string, logger *log.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[telegram] ", log.LstdFlags)
	}

	t := &Telegram{
		bot:    bot,
		events: make(chan ButtonPress, 64),
		logger: logger,
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	go t.consume(bot.GetUpdatesChan(u))

	return t, nil
}

func (t *Telegram) consume(updates tgbotapi.UpdatesChannel) {
	for update := range updates {
		cq := update.CallbackQuery
		if cq == nil || cq.Message == nil {
			continue
		}
		press := ButtonPress{
			SubscriberID: cq.Message.Chat.ID,
			CallbackID:   cq.ID,
			Payload:      cq.Data,
		}
		select {
		case t.events <- press:
		default:
			t.logger.Printf("event buffer full, dropping callback %s", cq.ID)
		}
	}
	close(t.events)
}

func keyboard(buttons []Button) *tgbotapi.InlineKeyboardMarkup {
	if len(buttons) == 0 {
		return nil
	}
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Payload))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(row)
	return &markup
}

// SendMessage posts an HTML message with the inline keyboard.
func (t *Telegram) SendMessage(_ context.Context, chatID int64, text string, buttons []Button) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if kb := keyboard(buttons); kb != nil {
		msg.ReplyMarkup = *kb
	}

	sent, err := t.bot.Send(msg)
	if err != nil {
		return 0, classify(err)
	}
	return sent.MessageID, nil
}

// EditMessage rewrites a sent message in place.
func (t *Telegram) EditMessage(_ context.Context, chatID int64, messageID int, text string, buttons []Button) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.ReplyMarkup = keyboard(buttons)

	if _, err := t.bot.Send(edit); err != nil {
		return classify(err)
	}
	return nil
}

// AnswerCallback acknowledges a button press.
func (t *Telegram) AnswerCallback(_ context.Context, callbackID, text string) error {
	cb := tgbotapi.NewCallback(callbackID, text)
	if _, err := t.bot.Request(cb); err != nil {
		return classify(err)
	}
	return nil
}

// Events delivers inbound button presses.
func (t *Telegram) Events() <-chan ButtonPress {
	return t.events
}

// classify maps bot API failures onto the controller's retriable/dead split.
// Anything unrecognized stays retriable: a flaky network must not get a
// subscriber marked dead.
func classify(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429:
			return &RetriableError{Err: err, RetryAfter: apiErr.RetryAfter}
		case apiErr.Code == 403:
			return &DeadRecipientError{Err: err}
		case strings.Contains(apiErr.Message, "chat not found"),
			strings.Contains(apiErr.Message, "user is deactivated"):
			return &DeadRecipientError{Err: err}
		case apiErr.Code >= 500:
			return &RetriableError{Err: err}
		}
		return err
	}
	return &RetriableError{Err: err}
}

// Verify interface compliance at compile time.
var _ Messenger = (*Telegram)(nil)
