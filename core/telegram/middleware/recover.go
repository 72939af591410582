package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/mailbot/core/logger"
	tghelpers "github.com/m3rciful/mailbot/core/telegram/helpers"
)

// ErrHandlerPanic is returned in place of a panic raised by a handler.
var ErrHandlerPanic = errors.New("handler panicked")

// RecoverMiddleware turns a handler panic into ErrHandlerPanic so one broken
// update cannot take the poller down.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.Error(tghelpers.BuildContext(c), "tg", "panic.recovered",
				slog.String("status", "fail"),
				slog.String("err", fmt.Sprint(r)),
				slog.String("stack", logger.SanitizeLimit(string(debug.Stack()), 4096)),
			)
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}()
		return next(c)
	}
}
