// Package helpers bridges tele.Context and context.Context and wraps the
// common send/edit calls used by handlers.
package helpers

import (
	"context"

	"github.com/m3rciful/otpbot/internal/logger"

	tele "gopkg.in/telebot.v4"
)

const contextKey = "logger_ctx"

// StoreContext caches a context.Context on the tele.Context so downstream
// helpers reuse the same RID and metadata.
func StoreContext(c tele.Context, ctx context.Context) {
	if c != nil && ctx != nil {
		c.Set(contextKey, ctx)
	}
}

// ContextFrom returns the cached context, if middleware stored one.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(contextKey).(context.Context)
	return ctx, ok
}

// BuildContext returns the update's context, building and caching one on
// first use. The context carries the RID plus update, user and chat ids so
// every log line of the update correlates.
func BuildContext(c tele.Context) context.Context {
	if cached, ok := ContextFrom(c); ok {
		return cached
	}

	updateID := c.Update().ID
	chatID := chatIDOf(c)
	userID := senderIDOf(c)

	rid, _ := c.Get("rid").(string)
	if rid == "" {
		rid = logger.BuildRID(updateID, chatID, userID)
	}

	ctx := logger.WithRID(context.Background(), rid)
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	StoreContext(c, ctx)
	return ctx
}

// WithHandler tags the stored context with the handler name.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	StoreContext(c, ctx)
	return ctx
}

func chatIDOf(c tele.Context) int64 {
	if chat := c.Chat(); chat != nil {
		return chat.ID
	}
	return 0
}

func senderIDOf(c tele.Context) int64 {
	if user := c.Sender(); user != nil {
		return user.ID
	}
	return 0
}
