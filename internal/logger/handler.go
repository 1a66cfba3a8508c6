package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	tsLayout = "2006-01-02T15:04:05.000Z07:00"
)

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler renders records as single-line KV or JSON with a fixed
// key prefix order. Attrs accumulated via WithAttrs and group prefixes are
// flattened into dotted keys before rendering.
type structuredHandler struct {
	cfg    handlerConfig
	preset []slog.Attr
	groups []string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = append([]string(nil), defaultKeyOrder...)
	}
	return &structuredHandler{cfg: cfg}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return fmt.Errorf("logger: writer not initialized")
	}

	rec := make(record, 16)
	toJSON := h.cfg.format == formatJSON

	ts := r.Time.UTC()
	rec["ts"] = ts.Truncate(time.Millisecond).Format(tsLayout)
	rec["level"] = normalizeLevel(r.Level.String())
	if toJSON {
		rec["ts_unix_nano"] = ts.UnixNano()
	}

	prefix := strings.Join(h.groups, ".")
	for _, a := range h.preset {
		rec.addAttr(prefix, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.addAttr(prefix, a)
		return true
	})

	rec.addContext(ctx)
	rec.compactRID(toJSON)

	if event, _ := rec.str("event"); event == "" {
		if r.Message != "" {
			rec["event"] = r.Message
		} else {
			rec["event"] = "unknown"
		}
	}
	if component, _ := rec.str("component"); component == "" {
		rec["component"] = "app"
	}

	rec.sanitizeEnums()
	rec.dropEmpty()

	var (
		line []byte
		err  error
	)
	if toJSON {
		line, err = rec.renderJSON(h.cfg.keyOrder)
	} else {
		line = rec.renderKV(h.cfg.keyOrder)
	}
	if err != nil {
		return err
	}
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line = append(line, '\n')
	}
	return h.cfg.writer.Write(line)
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.preset = append(append([]slog.Attr(nil), h.preset...), attrs...)
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

// record is the flattened field set of one log line.
type record map[string]any

func (rec record) addAttr(prefix string, attr slog.Attr) {
	key := attr.Key
	switch {
	case key == "":
		key = prefix
	case prefix != "":
		key = prefix + "." + key
	}
	if attr.Value.Kind() == slog.KindGroup {
		for _, child := range attr.Value.Group() {
			rec.addAttr(key, child)
		}
		return
	}
	if key == "" {
		return
	}
	if k, v, ok := coerceValue(key, attr.Value); ok {
		rec[k] = v
	}
}

// coerceValue maps a slog.Value onto the primitive set the renderers
// understand. Durations are rounded to milliseconds and the key gains an
// _ms suffix so readers never guess the unit.
func coerceValue(key string, val slog.Value) (string, any, bool) {
	switch val.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(val.String()), true
	case slog.KindBool:
		return key, val.Bool(), true
	case slog.KindInt64:
		return key, val.Int64(), true
	case slog.KindUint64:
		u := val.Uint64()
		if u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, u, true
	case slog.KindFloat64:
		return key, val.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(val.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, val.Time().UTC().Format(time.RFC3339Nano), true
	case slog.KindAny:
		switch x := val.Any().(type) {
		case error:
			return key, x.Error(), true
		case string:
			return key, strings.TrimSpace(x), true
		case time.Duration:
			return durationKey(key), RoundMS(x).Milliseconds(), true
		case fmt.Stringer:
			return key, x.String(), true
		case nil:
			return key, nil, false
		default:
			return key, fmt.Sprint(x), true
		}
	default:
		return key, val.Any(), true
	}
}

func durationKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_duration"):
		return key + "_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	}
	return key + "_ms"
}

func (rec record) addContext(ctx context.Context) {
	if ctx == nil {
		return
	}
	put := func(key string, v any) {
		if _, taken := rec[key]; !taken {
			rec[key] = v
		}
	}
	if rid := RIDFrom(ctx); rid != "" {
		put("rid", rid)
	}
	if uid := UserIDFrom(ctx); uid != 0 {
		put("user_id", uid)
	}
	if updateID := UpdateIDFrom(ctx); updateID != 0 {
		put("update_id", updateID)
	}
	if cid := ChatIDFrom(ctx); cid != 0 {
		put("chat_id", cid)
	}
	if hid := HandlerFrom(ctx); hid != "" {
		put("handler", hid)
	}
}

// compactRID shortens the rid field; JSON output keeps the original under
// rid_full since machine consumers may join on it.
func (rec record) compactRID(keepFull bool) {
	rid, ok := rec.str("rid")
	if !ok || rid == "" {
		return
	}
	compact := CompactRID(rid)
	if compact == "" || compact == rid {
		return
	}
	if keepFull {
		if _, taken := rec["rid_full"]; !taken {
			rec["rid_full"] = rid
		}
	}
	rec["rid"] = compact
}

func (rec record) sanitizeEnums() {
	if level, ok := rec.str("level"); ok {
		rec["level"] = normalizeLevel(level)
	}
	if s, ok := rec.str("status"); ok && s != "" {
		if norm, valid := normalizeStatus(s); valid {
			rec["status"] = norm
		}
	}
	if o, ok := rec.str("outcome"); ok && o != "" {
		if norm, valid := normalizeOutcome(o); valid {
			rec["outcome"] = norm
		} else {
			delete(rec, "outcome")
		}
	}
}

func (rec record) dropEmpty() {
	for k, v := range rec {
		switch val := v.(type) {
		case string:
			if val == "" {
				delete(rec, k)
			}
		case fmt.Stringer:
			if val.String() == "" {
				delete(rec, k)
			}
		case nil:
			delete(rec, k)
		}
	}
}

func (rec record) str(key string) (string, bool) {
	v, ok := rec[key]
	if !ok {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, true
	case fmt.Stringer:
		return val.String(), true
	default:
		return fmt.Sprint(val), true
	}
}

// keys returns the well-known prefix keys in their fixed order followed by
// the rest sorted.
func (rec record) keys(order []string) []string {
	out := make([]string, 0, len(rec))
	inPrefix := make(map[string]struct{}, len(order))
	for _, key := range order {
		if _, ok := rec[key]; ok {
			out = append(out, key)
			inPrefix[key] = struct{}{}
		}
	}
	tail := len(out)
	for key := range rec {
		if _, ok := inPrefix[key]; !ok {
			out = append(out, key)
		}
	}
	sort.Strings(out[tail:])
	return out
}

func (rec record) renderJSON(order []string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range rec.keys(order) {
		data, err := json.Marshal(rec[key])
		if err != nil {
			return nil, err
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(key))
		buf.WriteByte(':')
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (rec record) renderKV(order []string) []byte {
	var buf bytes.Buffer
	for i, key := range rec.keys(order) {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(key)
		buf.WriteByte('=')
		buf.WriteString(kvValue(rec[key]))
	}
	return buf.Bytes()
}

func kvValue(val any) string {
	switch v := val.(type) {
	case string:
		if strings.IndexFunc(v, kvNeedsQuote) >= 0 {
			return strconv.Quote(v)
		}
		return v
	case bool:
		return strconv.FormatBool(v)
	case int, int64, uint64, float64:
		return fmt.Sprint(v)
	default:
		s := fmt.Sprint(v)
		if strings.IndexFunc(s, kvNeedsQuote) >= 0 {
			return strconv.Quote(s)
		}
		return s
	}
}

func kvNeedsQuote(r rune) bool {
	return r <= 32 || r == '=' || r == '"'
}
