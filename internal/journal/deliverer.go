package journal

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/m3rciful/mailbot/core/logger"
	"github.com/m3rciful/mailbot/internal/conversation"
)

// Recorder persists delivery attempts.
type Recorder interface {
	Record(ctx context.Context, d *Delivery) error
}

// Deliverer journals every attempt made by the wrapped Deliverer. A journal
// failure is logged and never changes the delivery result.
type Deliverer struct {
	next  conversation.Deliverer
	rec   Recorder
	clock clockwork.Clock
}

// Wrap decorates next. A nil clock selects the real one.
func Wrap(next conversation.Deliverer, rec Recorder, clock clockwork.Clock) *Deliverer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Deliverer{next: next, rec: rec, clock: clock}
}

// Deliver implements conversation.Deliverer.
func (d *Deliverer) Deliver(ctx context.Context, msg conversation.Message) error {
	started := d.clock.Now()
	err := d.next.Deliver(ctx, msg)

	row := &Delivery{
		SessionID:  msg.SessionID,
		UserID:     msg.UserID,
		Recipient:  msg.To,
		Subject:    msg.Subject,
		Status:     StatusSent,
		StartedAt:  started,
		FinishedAt: d.clock.Now(),
	}
	if a := msg.Attachment; a != nil {
		row.AttachmentName = sql.NullString{String: a.FileName, Valid: true}
		row.AttachmentBytes = len(a.Data)
	}
	if err != nil {
		row.Status = StatusFailed
		row.Error = sql.NullString{String: logger.SanitizeLimit(err.Error(), 512), Valid: true}
	}

	recErr := d.rec.Record(context.WithoutCancel(ctx), row)
	attrs := []slog.Attr{slog.String("status", logger.Status(recErr)), slog.String("result", row.Status)}
	if recErr != nil {
		logger.Warn(ctx, "journal", "delivery.record", append(attrs, slog.String("err", recErr.Error()))...)
	} else {
		logger.Debug(ctx, "journal", "delivery.record", append(attrs, slog.Int64("id", row.ID))...)
	}
	return err
}
