package logger

import "strings"

// Every record carries a level from this set; slog's DEBUG-4 style offsets
// collapse to the nearest name.
var severityNames = map[string]string{
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
	"fatal":   "FATAL",
}

var knownOutcome = map[string]struct{}{
	"ok":           {},
	"fail":         {},
	"cancelled":    {},
	"expired":      {},
	"rate_limited": {},
}

func canonicalLevel(level string) string {
	key := strings.ToLower(level)
	if i := strings.IndexAny(key, "+-"); i > 0 {
		key = key[:i]
	}
	if name, ok := severityNames[key]; ok {
		return name
	}
	if level == "" {
		return "INFO"
	}
	return strings.ToUpper(level)
}

// canonicalStatus lower-cases status. Unknown values are kept so a typo
// shows up in the logs instead of vanishing.
func canonicalStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

// canonicalOutcome reports false for values outside knownOutcome; the
// handler drops those.
func canonicalOutcome(outcome string) (string, bool) {
	outcome = strings.ToLower(strings.TrimSpace(outcome))
	_, ok := knownOutcome[outcome]
	return outcome, ok
}

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
	"session_id",
	"kind",
	"command",
	"stage",
	"from_stage",
	"to_stage",
	"reason",
	"handler",
	"operation",
	"outcome",
	"duration_ms",
	"username",
	"recipient",
	"subject",
	"filename",
	"bytes",
	"text_len",
	"mode",
	"listen",
	"public_url",
	"http_code",
	"db",
	"host",
	"port",
	"err",
	"err_code",
	"err_kind",
	"retryable",
	"attempt",
	"attempts",
	"backoff_ms",
	"rate_limited",
	"pending_count",
	"active_sessions",
	"version",
	"commit",
	"uptime_ms",
}
