package router

import (
	"time"

	"log/slog"

	"github.com/m3rciful/otpbot/internal/logger"
	tg "github.com/m3rciful/otpbot/internal/telegram"
	"github.com/m3rciful/otpbot/internal/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Conversational is the hook into the per-chat dialog state. Text and
// photo updates go to the active conversation before anything else.
type Conversational interface {
	Active(chatID int64) bool
	HandleText(c tele.Context) error
	HandlePhoto(c tele.Context) error
}

// CommandRoutes wraps every registered command with the shared
// middleware and returns routes ready for bot.Handle.
func CommandRoutes(reg *tg.Registry) []tg.Route {
	if reg == nil {
		return nil
	}

	routes := make([]tg.Route, 0, len(reg.Commands()))
	for name, def := range reg.Commands() {
		h := def.Handler
		h = middleware.Recover(h)
		h = middleware.Logging(h)
		routes = append(routes, tg.Route{Endpoint: name, Handler: h})
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(reg.Commands())),
	)

	return routes
}

// TextRoutes builds the OnText and OnPhoto handlers. An active
// conversation step wins over command lookup, so a user can name a key
// "/generate" only by not being mid-dialog.
func TextRoutes(conv Conversational, reg *tg.Registry) []tg.Route {
	textHandler := func(c tele.Context) error {
		start := time.Now()

		if conv != nil && c.Chat() != nil && conv.Active(c.Chat().ID) {
			return handleWithSummary(c, "conversation", start, func() error {
				return conv.HandleText(c)
			})
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil {
				return handleWithSummary(c, normalizeHandlerName(key), start, func() error {
					return cmd.Handler(c)
				})
			}
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, func() error {
					return fb(c)
				})
			}
		}

		logHandlerSummary(c, "unknown_text", start, nil)
		return nil
	}

	photoHandler := func(c tele.Context) error {
		start := time.Now()
		if conv != nil && c.Chat() != nil && conv.Active(c.Chat().ID) {
			return handleWithSummary(c, "conversation_photo", start, func() error {
				return conv.HandlePhoto(c)
			})
		}
		logHandlerSummary(c, "unexpected_photo", start, nil)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.Recover(middleware.Logging(textHandler)),
		},
		{
			Endpoint: tele.OnPhoto,
			Handler:  middleware.Recover(middleware.Logging(photoHandler)),
		},
	}
}

// CallbackRoute wraps the typed callback dispatcher. The callback query
// is answered up front so the client stops its spinner regardless of the
// handler outcome.
func CallbackRoute(dispatch tele.HandlerFunc) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		cb := c.Callback()
		if cb == nil {
			return nil
		}

		_ = c.Respond()

		extras := []slog.Attr{
			slog.String("cb_data", logger.SanitizeLimit(cb.Data, 128)),
		}
		return handleWithSummary(c, "callback", start, func() error {
			return dispatch(c)
		}, extras...)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.Recover(middleware.Logging(handler)),
	}
}
