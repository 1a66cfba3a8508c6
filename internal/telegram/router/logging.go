// Package router wires updates to handlers: commands by name, free text
// and photos through the active conversation first, callbacks through a
// single typed dispatch handler. Every handled update emits one summary
// log line.
package router

import (
	"strings"
	"time"

	"log/slog"

	"github.com/m3rciful/otpbot/internal/logger"
	tghelpers "github.com/m3rciful/otpbot/internal/telegram/helpers"
	"github.com/m3rciful/otpbot/internal/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

func handleWithSummary(c tele.Context, handlerName string, start time.Time, fn func() error, extras ...slog.Attr) error {
	tghelpers.WithHandler(c, handlerName)
	err := fn()
	logHandlerSummary(c, handlerName, start, err, extras...)
	return err
}

func logHandlerSummary(c tele.Context, handlerName string, start time.Time, err error, extras ...slog.Attr) {
	ctx := tghelpers.WithHandler(c, handlerName)
	msgs, kb := middleware.GetCounters(c)

	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("handler", handlerName),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("cause", handlerName),
		)
	}
	attrs = append(attrs, extras...)
	logger.LogEvent(ctx, logger.Component("tg"), slog.LevelInfo, "handler.handled", attrs...)
}

func normalizeHandlerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	name = strings.TrimPrefix(name, "/")
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ToLower(name)
}
