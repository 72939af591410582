package middleware

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/mailbot/core/logger"
	tghelpers "github.com/m3rciful/mailbot/core/telegram/helpers"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
// Exclude holds update kinds as returned by UpdateKind.
type RateLimitOptions struct {
	Interval  time.Duration
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
	Now       func() time.Time
}

func (o RateLimitOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// UpdateKind classifies an update as "command", "media", "message" or "other".
func UpdateKind(upd tele.Update) string {
	msg := upd.Message
	if msg == nil {
		return "other"
	}
	switch {
	case msg.Document != nil || msg.Photo != nil:
		return "media"
	case strings.HasPrefix(msg.Text, "/"):
		return "command"
	}
	return "message"
}

// limiter remembers when each user was last let through. Entries older than
// the interval no longer affect decisions and are swept periodically.
type limiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     map[int64]time.Time
	swept    time.Time
}

func (l *limiter) allow(userID int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.swept) > time.Minute {
		for id, at := range l.last {
			if now.Sub(at) >= l.interval {
				delete(l.last, id)
			}
		}
		l.swept = now
	}
	if at, ok := l.last[userID]; ok && now.Sub(at) < l.interval {
		return false
	}
	l.last[userID] = now
	return true
}

// RateLimitMiddleware enforces a minimum interval between updates from the
// same user. Limited updates are answered by OnLimited and never reach next.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	lim := &limiter{interval: opts.Interval, last: make(map[int64]time.Time)}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := UpdateKind(c.Update())
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}
			if lim.allow(user.ID, opts.now()) {
				return next(c)
			}

			logger.Warn(tghelpers.BuildContext(c), "tg", "rate_limit",
				slog.String("status", "rate_limited"),
				slog.String("kind", kind),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
