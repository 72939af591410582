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

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

type structuredHandler struct {
	cfg    handlerConfig
	attrs  []slog.Attr
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

// Enabled reports whether the handler allows processing the provided level.
func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.cfg.level != nil {
		min = h.cfg.level.Level()
	}
	return level >= min
}

// Handle formats the slog.Record and writes it using the configured writer.
func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return fmt.Errorf("logger: writer not initialized")
	}
	isJSON := h.cfg.format == formatJSON

	rec := make(record, 16)
	ts := r.Time.UTC()
	rec["ts"] = ts.Truncate(time.Millisecond).Format(timeFormatMillis)
	if isJSON {
		rec["ts_unix_nano"] = ts.UnixNano()
	}
	h.collectAttrs(rec, h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		h.collectAttr(rec, a)
		return true
	})
	rec.inherit(metaFrom(ctx))

	rec["level"] = canonicalLevel(r.Level.String())
	rec.fallback("event", r.Message, "unknown")
	rec.fallback("component", "app")
	rec.compactRID(isJSON)
	rec.canonicalEnums()
	rec.redact()
	rec.prune()

	line, err := h.format(rec)
	if err != nil {
		return err
	}
	return h.cfg.writer.Write(append(line, '\n'))
}

// WithAttrs returns a shallow copy of the handler enriched with attrs.
func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

// WithGroup returns a shallow copy of the handler with an additional group prefix.
func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func (h *structuredHandler) collectAttrs(rec record, attrs []slog.Attr) {
	for _, a := range attrs {
		h.collectAttr(rec, a)
	}
}

func (h *structuredHandler) collectAttr(rec record, attr slog.Attr) {
	flattenAttr(joinGroups(h.groups, ""), attr, func(k string, v slog.Value) {
		if k == "" {
			return
		}
		key, val, ok := normalizeAttr(k, v)
		if !ok {
			return
		}
		rec[key] = val
	})
}

func (h *structuredHandler) format(rec record) ([]byte, error) {
	keys := rec.orderedKeys(h.cfg.keyOrder)
	if h.cfg.format == formatJSON {
		return formatJSONLine(rec, keys)
	}
	return formatKVLine(rec, keys), nil
}

func flattenAttr(prefix string, attr slog.Attr, fn func(string, slog.Value)) {
	key := attr.Key
	if key == "" {
		key = prefix
	} else if prefix != "" {
		key = prefix + "." + key
	}
	val := attr.Value
	switch val.Kind() {
	case slog.KindGroup:
		sub := val.Group()
		for _, child := range sub {
			flattenAttr(key, child, fn)
		}
	default:
		fn(key, val)
	}
}

func joinGroups(groups []string, leaf string) string {
	if len(groups) == 0 {
		return leaf
	}
	if leaf == "" {
		return strings.Join(groups, ".")
	}
	return strings.Join(groups, ".") + "." + leaf
}

func normalizeAttr(key string, val slog.Value) (string, any, bool) {
	if key == "" {
		return "", nil, false
	}
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
		return durationField(key, val.Duration())
	case slog.KindTime:
		return key, val.Time().UTC().Format(time.RFC3339Nano), true
	case slog.KindAny:
		v := val.Any()
		switch x := v.(type) {
		case error:
			return key, x.Error(), true
		case string:
			return key, strings.TrimSpace(x), true
		case time.Duration:
			return durationField(key, x)
		case fmt.Stringer:
			return key, x.String(), true
		case nil:
			return key, nil, false
		default:
			return key, fmt.Sprint(v), true
		}
	default:
		return key, val.Any(), true
	}
}

// durationField renders d in milliseconds under a key ending in "_ms", e.g.
// took -> took_ms, duration -> duration_ms.
func durationField(key string, d time.Duration) (string, any, bool) {
	if !strings.HasSuffix(key, "_ms") {
		key += "_ms"
	}
	return key, RoundMS(d).Milliseconds(), true
}

// record is one log line under construction, keyed by flattened attr name.
type record map[string]any

func (rec record) str(key string) (string, bool) {
	v, ok := rec[key]
	if !ok {
		return "", false
	}
	if s, isStr := v.(string); isStr {
		return s, true
	}
	return fmt.Sprint(v), true
}

// fallback sets key to the first non-empty candidate unless the record
// already has a non-empty value.
func (rec record) fallback(key string, candidates ...string) {
	if v, ok := rec.str(key); ok && v != "" {
		return
	}
	for _, c := range candidates {
		if c != "" {
			rec[key] = c
			return
		}
	}
}

// inherit copies correlation ids from the context; explicit attrs win.
func (rec record) inherit(m meta) {
	for _, f := range []struct {
		key string
		val any
		set bool
	}{
		{"rid", m.rid, m.rid != ""},
		{"update_id", m.updateID, m.updateID != 0},
		{"user_id", m.userID, m.userID != 0},
		{"chat_id", m.chatID, m.chatID != 0},
		{"session_id", m.sessionID, m.sessionID != ""},
		{"handler", m.handler, m.handler != ""},
	} {
		if _, exists := rec[f.key]; f.set && !exists {
			rec[f.key] = f.val
		}
	}
}

// compactRID shortens the rid for reading; JSON output keeps the original
// in rid_full.
func (rec record) compactRID(keepFull bool) {
	rid, ok := rec.str("rid")
	if !ok || rid == "" {
		return
	}
	compact := CompactRID(rid)
	if compact == "" || compact == rid {
		return
	}
	if _, seen := rec["rid_full"]; keepFull && !seen {
		rec["rid_full"] = rid
	}
	rec["rid"] = compact
}

func (rec record) canonicalEnums() {
	if s, ok := rec.str("status"); ok && s != "" {
		rec["status"] = canonicalStatus(s)
	}
	if o, ok := rec.str("outcome"); ok && o != "" {
		if v, known := canonicalOutcome(o); known {
			rec["outcome"] = v
		} else {
			delete(rec, "outcome")
		}
	}
}

// addressKeys hold email addresses; they are logged masked.
var addressKeys = map[string]struct{}{
	"recipient": {},
	"email":     {},
	"from":      {},
}

// secretKeys are never logged.
var secretKeys = map[string]struct{}{
	"password": {},
	"token":    {},
}

func (rec record) redact() {
	for k, v := range rec {
		if _, ok := secretKeys[k]; ok {
			rec[k] = "<redacted>"
			continue
		}
		if _, ok := addressKeys[k]; ok {
			if s, isStr := v.(string); isStr {
				rec[k] = MaskAddress(s)
			}
		}
	}
}

// MaskAddress keeps the first character of the local part and the domain:
// "alice@example.org" becomes "a***@example.org".
func MaskAddress(addr string) string {
	local, domain, ok := strings.Cut(addr, "@")
	if !ok || local == "" {
		return "***"
	}
	return local[:1] + "***@" + domain
}

func (rec record) prune() {
	for k, v := range rec {
		switch val := v.(type) {
		case nil:
			delete(rec, k)
		case string:
			if val == "" {
				delete(rec, k)
			}
		case fmt.Stringer:
			if val.String() == "" {
				delete(rec, k)
			}
		}
	}
}

// orderedKeys lists keys named in order first, then the rest alphabetically.
func (rec record) orderedKeys(order []string) []string {
	keys := make([]string, 0, len(rec))
	placed := make(map[string]struct{}, len(order))
	for _, k := range order {
		if _, ok := rec[k]; ok {
			if _, dup := placed[k]; !dup {
				keys = append(keys, k)
				placed[k] = struct{}{}
			}
		}
	}
	rest := make([]string, 0, len(rec)-len(keys))
	for k := range rec {
		if _, ok := placed[k]; !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func formatJSONLine(rec record, keys []string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		data, err := json.Marshal(rec[k])
		if err != nil {
			return nil, fmt.Errorf("logger: encode %s: %w", k, err)
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(k))
		buf.WriteByte(':')
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func formatKVLine(rec record, keys []string) []byte {
	var buf bytes.Buffer
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(kvValue(rec[k]))
	}
	return buf.Bytes()
}

func kvValue(val any) string {
	var s string
	switch v := val.(type) {
	case string:
		s = v
	case bool:
		s = strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	default:
		s = fmt.Sprint(v)
	}
	if strings.IndexFunc(s, needsQuote) >= 0 {
		return strconv.Quote(s)
	}
	return s
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}
