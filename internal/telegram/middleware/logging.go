package middleware

import (
	"context"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/m3rciful/otpbot/internal/logger"
	tghelpers "github.com/m3rciful/otpbot/internal/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// recentUpdates keeps a short-lived set of processed update IDs to avoid
// double logging when the middleware runs on more than one route branch.
var (
	recentMu     sync.Mutex
	recentUpdate = make(map[int]time.Time)
	keepFor      = 10 * time.Second
)

func alreadyLogged(updateID int) bool {
	now := time.Now()
	recentMu.Lock()
	defer recentMu.Unlock()
	for id, ts := range recentUpdate {
		if now.Sub(ts) > keepFor {
			delete(recentUpdate, id)
		}
	}
	if _, ok := recentUpdate[updateID]; ok {
		return true
	}
	recentUpdate[updateID] = now
	return false
}

// Logging sets the update RID and logs a single debug receipt line per
// update. Message text is never logged here; updates in a secret-entry
// step may carry TOTP seeds.
func Logging(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()

		var chatID, userID int64
		chat := c.Chat()
		user := c.Sender()
		if chat != nil {
			chatID = chat.ID
		}
		if user != nil {
			userID = user.ID
		}
		rid := logger.BuildRID(upd.ID, chatID, userID)
		c.Set("rid", rid)
		c.Set("update_start", time.Now())

		ctx := logger.WithRID(context.Background(), rid)
		ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
		ctx = logger.WithLogger(ctx, logger.Component("tg"))
		tghelpers.StoreContext(c, ctx)

		if logger.ShouldSampleDebug() && !alreadyLogged(upd.ID) {
			attrs := []slog.Attr{
				slog.String("status", "ok"),
				slog.String("rid", rid),
				slog.Int("update_id", upd.ID),
			}
			if chatID != 0 {
				attrs = append(attrs,
					slog.Int64("chat_id", chatID),
					slog.String("chat_type", string(chat.Type)),
				)
			}
			if userID != 0 {
				attrs = append(attrs, slog.Int64("user_id", userID))
				if user.Username != "" {
					attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
				}
			}

			switch {
			case upd.Callback != nil:
				if data := strings.TrimSpace(upd.Callback.Data); data != "" {
					attrs = append(attrs, slog.String("cb_data", logger.SanitizeLimit(data, 128)))
				}
			case upd.Message != nil && upd.Message.Photo != nil:
				attrs = append(attrs, slog.String("kind", "photo"))
			}
			logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", attrs...)
		}

		return next(c)
	}
}
