package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode"
)

type contextKey int

const (
	ctxRID contextKey = iota
	ctxUpdateID
	ctxUserID
	ctxChatID
	ctxLogger
	ctxHandler
)

// WithLogger stores log in ctx so lower layers reuse the caller's logger.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxLogger, log)
}

// FromContext returns the logger stored in ctx, or the global default.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxLogger).(*slog.Logger); ok {
			return l
		}
	}
	return L
}

// WithRID attaches the request correlation id.
func WithRID(ctx context.Context, rid string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRID, rid)
}

// RIDFrom returns the correlation id from ctx, or "".
func RIDFrom(ctx context.Context) string {
	return ctxString(ctx, ctxRID)
}

// WithUpdateMeta attaches the identifiers shared by every log line of one
// Telegram update.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUpdateID, updateID)
	ctx = context.WithValue(ctx, ctxUserID, userID)
	return context.WithValue(ctx, ctxChatID, chatID)
}

// WithHandler records which handler owns the rest of this update.
func WithHandler(ctx context.Context, handler string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if handler == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxHandler, handler)
}

// HandlerFrom returns the handler name from ctx, or "".
func HandlerFrom(ctx context.Context) string {
	return ctxString(ctx, ctxHandler)
}

// UserIDFrom returns the Telegram user id from ctx, or 0.
func UserIDFrom(ctx context.Context) int64 {
	return ctxInt64(ctx, ctxUserID)
}

// ChatIDFrom returns the chat id from ctx, or 0.
func ChatIDFrom(ctx context.Context) int64 {
	return ctxInt64(ctx, ctxChatID)
}

// UpdateIDFrom returns the update id from ctx, or 0.
func UpdateIDFrom(ctx context.Context) int {
	return int(ctxInt64(ctx, ctxUpdateID))
}

func ctxString(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(key).(string)
	return s
}

func ctxInt64(ctx context.Context, key contextKey) int64 {
	if ctx == nil {
		return 0
	}
	switch id := ctx.Value(key).(type) {
	case int64:
		return id
	case int:
		return int64(id)
	}
	return 0
}

// Sanitize strips control and format runes so a value cannot break the
// single-line log framing. Tab and newline survive; the KV renderer quotes
// them.
func Sanitize(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case r == 0x7F, unicode.IsControl(r), unicode.Is(unicode.Cf, r):
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SanitizeLimit sanitizes s and truncates it to max runes.
func SanitizeLimit(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(Sanitize(s))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max])
}

// BuildRID composes the correlation id as updateID:chatID:userID.
func BuildRID(updateID int, chatID, userID int64) string {
	return fmt.Sprintf("%d:%d:%d", updateID, chatID, userID)
}

// CompactRID rewrites a numeric updateID:chatID:userID rid as dot-joined
// base36 segments. Anything that does not match the shape passes through
// untouched.
func CompactRID(rid string) string {
	rid = strings.TrimSpace(rid)
	if rid == "" {
		return ""
	}
	parts := strings.Split(rid, ":")
	if len(parts) != 3 {
		return rid
	}
	out := make([]string, len(parts))
	for i, part := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || strings.TrimSpace(part) == "" {
			return rid
		}
		out[i] = strconv.FormatInt(n, 36)
	}
	return strings.Join(out, ".")
}
