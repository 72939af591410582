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

// seenUpdates remembers recently logged update ids. LoggerMiddleware runs both
// in the global chain and per route, and the receipt line is wanted once.
type seenUpdates struct {
	mu  sync.Mutex
	ttl time.Duration
	at  map[int]time.Time
}

func (s *seenUpdates) first(id int, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for old, ts := range s.at {
		if now.Sub(ts) > s.ttl {
			delete(s.at, old)
		}
	}
	if _, ok := s.at[id]; ok {
		return false
	}
	s.at[id] = now
	return true
}

var receipts = &seenUpdates{ttl: 10 * time.Second, at: make(map[int]time.Time)}

// LoggerMiddleware attaches the request id and a logging context to the
// update, then logs one sampled debug receipt line for it.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		now := time.Now()
		upd := c.Update()
		if rid, _ := c.Get("rid").(string); rid == "" {
			c.Set("rid", logger.BuildRID(upd.ID, tghelpers.ChatID(c), tghelpers.SenderID(c)))
		}
		ctx := tghelpers.BuildContext(c)

		if logger.ShouldSampleDebug() && receipts.first(upd.ID, now) {
			logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", receiptAttrs(c)...)
		}
		return next(c)
	}
}

// receiptAttrs describes the update without its free-form content: message
// text may carry an address, so only commands are echoed.
func receiptAttrs(c tele.Context) []slog.Attr {
	attrs := []slog.Attr{slog.String("status", "ok")}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil && user.Username != "" {
		attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
	}

	upd := c.Update()
	msg := upd.Message
	if msg == nil {
		return attrs
	}
	attrs = append(attrs, slog.String("kind", UpdateKind(upd)))
	switch {
	case msg.Document != nil:
		attrs = append(attrs,
			slog.String("filename", logger.SanitizeLimit(msg.Document.FileName, 128)),
			slog.Int64("bytes", msg.Document.FileSize),
		)
	case msg.Photo != nil:
		attrs = append(attrs, slog.Int64("bytes", msg.Photo.FileSize))
	case strings.HasPrefix(msg.Text, "/"):
		attrs = append(attrs, slog.String("command", logger.SanitizeLimit(strings.Fields(msg.Text)[0], 64)))
	default:
		attrs = append(attrs, slog.Int("text_len", len([]rune(msg.Text))))
	}
	return attrs
}
