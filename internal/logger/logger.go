// Package logger provides the structured slog stack shared by all components:
// an ordered KV/JSON line handler, an asynchronous fan-out writer, and
// context carriers for update correlation.
package logger

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/otpbot/internal/buildinfo"
)

// Config narrows the logging section of the application configuration so the
// package does not depend on internal/config.
type Config struct {
	Level       string
	Format      string
	KeysOrder   string
	DebugSample string
	Dir         string
	File        string
	Profile     string
}

var (
	initOnce   sync.Once
	shutdownMu sync.Mutex
	shutdowned bool

	logWriter  *asyncWriter
	logClosers []io.Closer

	levelVar slog.LevelVar

	debugSampler  = newRatioSampler(1, 50)
	traceOverride bool

	// L is the base logger exposed for call sites without a context.
	// It points at slog's default handler until Init installs ours, so
	// packages can log safely during startup and in tests.
	L = slog.Default()

	// DB logs storage events.
	DB = L.With("component", "db")
	// TG logs Telegram transport events.
	TG = L.With("component", "tg")
	// MIG logs schema migration events.
	MIG = L.With("component", "db.migrate")
	// TWire logs bot wiring steps.
	TWire = L.With("component", "tg.wire")
	// SVCVault logs vault service activity.
	SVCVault = L.With("component", "service.vault")
)

// Init installs the structured handler as the process-wide logger. Later
// calls are no-ops.
func Init(cfg Config) error {
	initOnce.Do(func() {
		levelVar.Set(parseLevel(cfg.Level))

		num, den := parseRatioSpec(cfg.DebugSample)
		if num <= 0 || den <= 0 {
			num, den = 1, 50
		}
		debugSampler.Set(num, den)
		traceOverride = isTruthy(os.Getenv("TRACE")) || isTruthy(os.Getenv("LOG_TRACE"))

		outputs, closers := openSinks(cfg)
		logClosers = closers
		logWriter = newAsyncWriter(outputs, 64*1024)

		L = slog.New(newStructuredHandler(handlerConfig{
			level:    &levelVar,
			writer:   logWriter,
			format:   pickFormat(cfg),
			keyOrder: pickKeyOrder(cfg.KeysOrder),
		}))
		slog.SetDefault(L)

		DB = L.With("component", "db")
		TG = L.With("component", "tg")
		MIG = L.With("component", "db.migrate")
		TWire = L.With("component", "tg.wire")
		SVCVault = L.With("component", "service.vault")

		profile := strings.ToLower(strings.TrimSpace(cfg.Profile))
		if profile == "" {
			profile = "prod"
		}
		L.LogAttrs(context.Background(), slog.LevelInfo, "startup",
			slog.String("component", "app"),
			slog.String("event", "startup"),
			slog.String("go_version", runtime.Version()),
			slog.String("build_commit", buildinfo.Commit),
			slog.String("build_time", buildinfo.Date),
			slog.String("cfg_profile", profile),
		)
	})
	return nil
}

// Shutdown flushes buffered log output and closes opened sinks.
func Shutdown() error {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if shutdowned {
		return nil
	}
	shutdowned = true

	var errs []error
	if logWriter != nil {
		errs = append(errs, logWriter.Flush(), logWriter.Close())
	}
	for _, c := range logClosers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// pickFormat defaults to machine-readable JSON; dev profiles get KV lines
// unless the config says otherwise.
func pickFormat(cfg Config) logFormat {
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "kv", "text", "pretty":
		return formatKV
	case "json":
		return formatJSON
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Profile)) {
	case "debug", "dev":
		return formatKV
	}
	return formatJSON
}

func pickKeyOrder(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "default" {
		return append([]string(nil), defaultKeyOrder...)
	}
	var order []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			order = append(order, p)
		}
	}
	if len(order) == 0 {
		return append([]string(nil), defaultKeyOrder...)
	}
	return order
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// openSinks always includes stdout; a file sink is added when both dir and
// file are configured. Sink failures degrade to stdout-only logging.
func openSinks(cfg Config) ([]io.Writer, []io.Closer) {
	writers := []io.Writer{os.Stdout}
	dir := strings.TrimSpace(cfg.Dir)
	file := strings.TrimSpace(cfg.File)
	if dir == "" || file == "" {
		return writers, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("logger: failed to create log dir %s: %v", dir, err)
		return writers, nil
	}
	path := filepath.Join(dir, file)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("logger: failed to open log file %s: %v", path, err)
		return writers, nil
	}
	return append(writers, f), []io.Closer{f}
}

// LogEvent prefixes attrs with the event attribute and logs through logg,
// falling back to the context logger.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Component returns a child of the base logger scoped to one component.
func Component(name string) *slog.Logger {
	name = strings.TrimSpace(name)
	if name == "" {
		return L
	}
	return L.With("component", name)
}

// Event logs with component scope resolved automatically.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), level, event, attrs...)
}

// Debug logs a debug-level event for the given component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

// Info logs an info-level event for the given component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

// Warn logs a warn-level event for the given component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

// Error logs an error-level event for the given component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// ShouldSampleDebug gates high-volume debug details; TRACE=1 bypasses the
// sampler entirely.
func ShouldSampleDebug() bool {
	return traceOverride || debugSampler.Allow()
}
