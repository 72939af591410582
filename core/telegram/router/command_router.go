package router

import (
	"log/slog"
	"sort"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/mailbot/core/logger"
	tg "github.com/m3rciful/mailbot/core/telegram"
	"github.com/m3rciful/mailbot/core/telegram/middleware"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes turns every registered command into a route. Admin-only
// commands are checked against AdminID before the handler runs.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	admin := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	defs := reg.Commands()
	names := make([]string, 0, len(defs))
	for cmd := range defs {
		names = append(names, cmd)
	}
	sort.Strings(names)

	routes := make([]tg.Route, 0, len(names))
	admins := 0
	for _, cmd := range names {
		def := defs[cmd]
		h := commandHandler(normalizeHandlerName(cmd), def.Handler)
		if def.AdminOnly {
			h = admin(h)
			admins++
		}
		routes = append(routes, tg.Route{Endpoint: cmd, Handler: h})
	}

	logger.Info(logger.Background(), "tg.wire", "routes.commands",
		slog.Int("commands", len(routes)),
		slog.Int("admin_only", admins),
	)
	return routes
}

func commandHandler(name string, h tele.HandlerFunc) tele.HandlerFunc {
	return guard(func(c tele.Context) error {
		return handled(c, name, time.Now(), h)
	})
}
