package logger

import "strings"

// Severity names as they appear in output.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
	LevelFatal = "FATAL"
)

func normalizeLevel(level string) string {
	switch strings.ToLower(level) {
	case "":
		return LevelInfo
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	}
	return strings.ToUpper(level)
}

// normalizeStatus lowercases status and reports whether it belongs to the
// closed vocabulary. Unknown values are passed through by the caller.
func normalizeStatus(status string) (string, bool) {
	status = strings.ToLower(strings.TrimSpace(status))
	switch status {
	case "ok", "fail", "skip", "retry", "rate_limited", "cancelled":
		return status, true
	}
	return status, false
}

// normalizeOutcome is stricter than normalizeStatus: unknown outcomes are
// dropped rather than passed through.
func normalizeOutcome(outcome string) (string, bool) {
	outcome = strings.ToLower(strings.TrimSpace(outcome))
	switch outcome {
	case "ok", "fail", "cancelled", "rate_limited":
		return outcome, true
	}
	return "", false
}

// defaultKeyOrder fixes the leading columns of every log line so lines from
// different components stay visually aligned. Keys not listed here render
// after these, sorted.
var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"handler",
	"operation",
	"op",
	"step",
	"cb_action",
	"key_name",
	"outcome",
	"duration_ms",
	"messages",
	"kb",
	"count",
	"payload",
	"lang",
	"username",
	"mode",
	"listen",
	"public_url",
	"backend",
	"db",
	"host",
	"port",
	"path",
	"err",
	"err_code",
	"cause",
	"retryable",
	"attempts",
	"backoff_ms",
	"rate_limited",
}
