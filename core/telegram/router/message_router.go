package router

import (
	"strings"
	"time"

	tg "github.com/m3rciful/mailbot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// Conversation consumes the user's free-form input: text, documents and photos.
type Conversation interface {
	HandleMessage(c tele.Context) error
}

// MessageOptions controls fallback behaviour for message updates.
type MessageOptions struct {
	// UnknownCommand answers "/word" messages that match no registered command.
	UnknownCommand tele.HandlerFunc
}

// MessageRoutes builds handlers for text, document and photo updates.
// Registered commands (including aliases) win over the conversation; other
// slash-prefixed text never reaches it.
func MessageRoutes(conv Conversation, reg *tg.Registry, opts MessageOptions) []tg.Route {
	textHandler := func(c tele.Context) error {
		start := time.Now()
		text := strings.TrimSpace(c.Text())

		if strings.HasPrefix(text, "/") {
			if reg != nil {
				// Admin-only commands are reachable by their exact name only, through the admin check.
				if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil && !cmd.AdminOnly {
					return handled(c, normalizeHandlerName(key), start, cmd.Handler)
				}
			}
			if opts.UnknownCommand != nil {
				return handled(c, "unknown_command", start, opts.UnknownCommand)
			}
			skipped(c, "unknown_command", start)
			return nil
		}

		if conv != nil {
			return handled(c, "conversation", start, conv.HandleMessage)
		}

		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return handled(c, "fallback", start, fb)
			}
		}
		skipped(c, "unknown_text", start)
		return nil
	}

	mediaHandler := func(name string) tele.HandlerFunc {
		return func(c tele.Context) error {
			start := time.Now()
			if conv == nil {
				skipped(c, name, start)
				return nil
			}
			return handled(c, name, start, conv.HandleMessage)
		}
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: guard(textHandler)},
		{Endpoint: tele.OnDocument, Handler: guard(mediaHandler("conversation_document"))},
		{Endpoint: tele.OnPhoto, Handler: guard(mediaHandler("conversation_photo"))},
	}
}
