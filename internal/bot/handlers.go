package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/mailbot/core/logger"
	coretelegram "github.com/m3rciful/mailbot/core/telegram"
	"github.com/m3rciful/mailbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/mailbot/core/telegram/helpers"
	"github.com/m3rciful/mailbot/internal/conversation"
	"github.com/m3rciful/mailbot/internal/journal"

	tele "gopkg.in/telebot.v4"
)

const (
	unknownCommandText = "Unknown command. Send /help to see what I can do."
	rateLimitedText    = "Too many messages at once, please slow down."
	statsWindow        = 24 * time.Hour
)

// Submitter accepts conversation events.
type Submitter interface {
	Submit(ctx context.Context, ev conversation.Event) error
}

// StatusCounter reports journaled deliveries by status.
type StatusCounter interface {
	CountByStatus(ctx context.Context, since time.Time) (map[string]int, error)
}

// Handlers turns Telegram updates into conversation events and serves the
// auxiliary commands.
type Handlers struct {
	engine   Submitter
	active   func() int
	journal  StatusCounter
	registry *coretelegram.Registry
	now      func() time.Time
}

// HandleMessage implements router.Conversation.
func (h *Handlers) HandleMessage(c tele.Context) error {
	ev, ok := EventFromMessage(c.Message())
	if !ok {
		return nil
	}
	return h.submit(c, ev)
}

// submit forwards ev to the engine. Replies go to the user's private chat, so
// events from groups and channels are dropped.
func (h *Handlers) submit(c tele.Context, ev conversation.Event) error {
	ctx := tghelpers.BuildContext(c)
	if chat := c.Chat(); chat != nil && chat.Type != tele.ChatPrivate {
		logger.Debug(ctx, "tg", "event.skip",
			slog.String("status", "skip"),
			slog.String("kind", string(ev.Kind)),
			slog.String("chat_type", string(chat.Type)),
		)
		return nil
	}
	if err := h.engine.Submit(ctx, ev); err != nil {
		logger.Warn(ctx, "tg", "event.submit",
			slog.String("kind", string(ev.Kind)),
			slog.String("err", err.Error()),
		)
		return nil
	}
	return nil
}

func (h *Handlers) start(c tele.Context) error {
	if uid := tghelpers.SenderID(c); uid != 0 {
		return h.submit(c, conversation.StartEvent(uid))
	}
	return nil
}

func (h *Handlers) cancel(c tele.Context) error {
	if uid := tghelpers.SenderID(c); uid != 0 {
		return h.submit(c, conversation.CancelEvent(uid))
	}
	return nil
}

func (h *Handlers) help(c tele.Context) error {
	return tghelpers.SendText(c, h.registry.HelpText())
}

func (h *Handlers) unknownCommand(c tele.Context) error {
	return tghelpers.SendText(c, unknownCommandText)
}

func (h *Handlers) rateLimited(c tele.Context) error {
	return tghelpers.SendText(c, rateLimitedText)
}

func (h *Handlers) stats(c tele.Context) error {
	return tghelpers.SendText(c, h.statsText(tghelpers.BuildContext(c)))
}

func (h *Handlers) statsText(ctx context.Context) string {
	var b strings.Builder
	active := 0
	if h.active != nil {
		active = h.active()
	}
	fmt.Fprintf(&b, "Active sessions: %d", active)

	if h.journal == nil {
		b.WriteString("\nJournal: disabled")
		return b.String()
	}
	counts, err := h.journal.CountByStatus(ctx, h.now().Add(-statsWindow))
	if err != nil {
		logger.Error(ctx, "journal", "stats.query", slog.String("err", err.Error()))
		b.WriteString("\nJournal: unavailable")
		return b.String()
	}
	fmt.Fprintf(&b, "\nSent (24h): %d\nFailed (24h): %d", counts[journal.StatusSent], counts[journal.StatusFailed])
	return b.String()
}

// register adds the bot's commands. /stats exists only when an admin is set.
func (h *Handlers) register(reg *coretelegram.Registry, adminID int64) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     h.start,
		Description: "Compose a new email",
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     h.cancel,
		Description: "Cancel the current email",
		Aliases:     []string{"stop"},
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     h.help,
		Description: "Show available commands",
	})
	if adminID != 0 {
		reg.RegisterCommand("/stats", commands.Command{
			Handler:     h.stats,
			Description: "Delivery statistics",
			AdminOnly:   true,
		})
	}
}
