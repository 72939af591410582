package middleware

import (
	"time"

	tele "gopkg.in/telebot.v4"
)

// UpdateRecorder receives one observation per handled update.
type UpdateRecorder interface {
	ObserveUpdate(kind string, took time.Duration, err error)
}

// MetricsMiddleware reports every update's kind, handling time and result to rec.
func MetricsMiddleware(rec UpdateRecorder) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		if rec == nil {
			return next
		}
		return func(c tele.Context) error {
			start := time.Now()
			err := next(c)
			rec.ObserveUpdate(UpdateKind(c.Update()), time.Since(start), err)
			return err
		}
	}
}
