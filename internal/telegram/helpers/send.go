package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/otpbot/internal/logger"
	"github.com/m3rciful/otpbot/internal/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by the helper
// functions. Passing nil reverts to synchronous sends.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func sendAsync(c tele.Context, action string, run func() error) error {
	disp := globalDispatcher.Load()
	if disp == nil {
		return run()
	}

	ctx := BuildContext(c)
	if err := disp.Enqueue(ctx, action, run); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.String("action", action),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}

// SendText sends plain text (no parse mode) to the current recipient.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var sendOpts *tele.SendOptions
	if len(opts) > 0 {
		sendOpts = opts[0]
	}
	return sendAsync(c, "send.text", func() error {
		if sendOpts != nil {
			return c.Send(text, sendOpts)
		}
		return c.Send(text)
	})
}

// SendMDV2 sends a message with MarkdownV2 parse mode and optional markup.
func SendMDV2(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	var rm *tele.ReplyMarkup
	if len(markup) > 0 {
		rm = markup[0]
	}
	return SendText(c, text, &tele.SendOptions{ParseMode: tele.ModeMarkdownV2, ReplyMarkup: rm})
}

// EditText edits the callback's message in place with plain text.
func EditText(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	var rm *tele.ReplyMarkup
	if len(markup) > 0 {
		rm = markup[0]
	}
	if rm != nil {
		return c.Edit(text, rm)
	}
	return c.Edit(text)
}

// EditMDV2 edits the callback's message with MarkdownV2 parse mode.
func EditMDV2(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	var rm *tele.ReplyMarkup
	if len(markup) > 0 {
		rm = markup[0]
	}
	return c.Edit(text, &tele.SendOptions{ParseMode: tele.ModeMarkdownV2, ReplyMarkup: rm})
}
