// Package middleware holds the shared handler chain: panic recovery,
// update receipt logging, per-user rate limiting and message counters.
package middleware

import (
	"log/slog"
	"runtime/debug"

	"github.com/m3rciful/otpbot/internal/logger"

	tele "gopkg.in/telebot.v4"
)

// Recover catches panics in handlers so a single bad update cannot take
// the bot down. The panic value and stack go to the log; the update is
// dropped.
func Recover(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.TG.Error("panic recovered",
				slog.String("event", "tg.panic"),
				slog.Int("update_id", c.Update().ID),
				slog.Any("err", r),
				slog.String("stack", string(debug.Stack())),
			)
		}()
		return next(c)
	}
}
