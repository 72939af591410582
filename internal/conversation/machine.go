package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/m3rciful/mailbot/core/logger"
)

const logComponent = "conv"

// EndReason tells why a session left the store.
type EndReason string

// Reasons reported to Observer.SessionEnded.
const (
	EndCompleted       EndReason = "completed"
	EndDeliveryFailed  EndReason = "delivery_failed"
	EndTransportFailed EndReason = "transport_failed"
	EndCancelled       EndReason = "cancelled"
	EndExpired         EndReason = "expired"
	EndReplaced        EndReason = "replaced"
	EndAborted         EndReason = "aborted"
)

// Transition records what one event did to a session. Err carries the
// taxonomy error raised while handling the event, if any; Ignored is set when
// the event had no effect (stale timer, cancel without a session).
type Transition struct {
	UserID    int64
	SessionID string
	Event     EventKind
	From      Stage
	To        Stage
	Err       error
	Ignored   bool
}

// Advanced reports whether the session moved to a later stage.
func (t Transition) Advanced() bool {
	return t.To.Rank() > t.From.Rank()
}

// Machine applies events to sessions. It must be driven with at most one event
// in flight per user; Engine guarantees that.
type Machine struct {
	store     *Store
	timers    *Supervisor
	resolver  *Resolver
	deliverer Deliverer
	replier   Replier
	body      *BodyRenderer
	messages  Messages
	clock     clockwork.Clock
	observer  Observer
}

// Handle applies ev to the user's session and returns the resulting transition.
func (m *Machine) Handle(ctx context.Context, ev Event) Transition {
	switch ev.Kind {
	case KindStart:
		return m.begin(ctx, ev)
	case KindCancel:
		return m.cancel(ctx, ev)
	case KindTimeout:
		return m.expire(ctx, ev)
	}

	sess, ok := m.store.Get(ev.UserID)
	if !ok {
		// Anything but /start from an unknown user opens a fresh conversation.
		return m.begin(ctx, ev)
	}
	switch sess.Stage {
	case StageAwaitingEmail, StageAwaitingSubject, StageAwaitingName:
		return m.collect(ctx, sess, ev)
	case StageAwaitingAttachment:
		return m.finish(ctx, sess, ev)
	}
	// Only active stages are ever stored.
	return m.abort(ctx, sess, ev, fmt.Errorf("session in unexpected stage %q", sess.Stage))
}

func (m *Machine) begin(ctx context.Context, ev Event) Transition {
	sess := NewSession(ev.UserID, m.clock.Now())
	sess.TimerToken = m.timers.Arm(ev.UserID)
	prev, replaced := m.store.Replace(sess)

	ctx = logger.WithSession(ctx, sess.ID, sess.UserID)
	if replaced {
		m.observer.SessionEnded(prev, EndReplaced)
		logger.Info(ctx, logComponent, "session.replace",
			slog.String("previous_session_id", prev.ID),
			slog.String("from_stage", prev.Stage.String()),
		)
	}
	m.observer.SessionStarted(sess)
	logger.Info(ctx, logComponent, "session.start",
		slog.String("kind", string(ev.Kind)),
		slog.String("stage", sess.Stage.String()),
	)

	m.reply(ctx, sess.UserID, m.messages.AskEmail)
	return Transition{
		UserID:    sess.UserID,
		SessionID: sess.ID,
		Event:     ev.Kind,
		From:      StageNone,
		To:        sess.Stage,
	}
}

func (m *Machine) cancel(ctx context.Context, ev Event) Transition {
	sess, ok := m.store.Get(ev.UserID)
	if !ok {
		m.reply(ctx, ev.UserID, m.messages.NothingToCancel)
		return Transition{UserID: ev.UserID, Event: ev.Kind, Ignored: true}
	}
	ctx = logger.WithSession(ctx, sess.ID, sess.UserID)
	m.terminate(ctx, sess, EndCancelled, m.messages.Cancelled)
	return m.ended(sess, ev, &Error{Kind: ErrUserCancelled})
}

func (m *Machine) expire(ctx context.Context, ev Event) Transition {
	sess, ok := m.store.Get(ev.UserID)
	if !ok || sess.TimerToken != ev.timerToken {
		logger.Debug(ctx, logComponent, "timeout.stale",
			slog.Int64("user_id", ev.UserID),
			slog.Bool("session", ok),
		)
		return Transition{UserID: ev.UserID, Event: ev.Kind, Ignored: true}
	}
	ctx = logger.WithSession(ctx, sess.ID, sess.UserID)
	m.terminate(ctx, sess, EndExpired, m.messages.TimedOut)
	return m.ended(sess, ev, &Error{Kind: ErrSessionExpired})
}

func (m *Machine) collect(ctx context.Context, sess Session, ev Event) Transition {
	ctx = logger.WithSession(ctx, sess.ID, sess.UserID)
	now := m.clock.Now()

	if ev.Kind != KindText {
		return m.reprompt(ctx, sess, ev, now, m.messages.ExpectText+"\n"+m.messages.prompt(sess.Stage),
			wrap(ErrValidation, fmt.Errorf("%s sent while %s", ev.Kind, sess.Stage)))
	}

	value := ev.Text
	switch sess.Stage {
	case StageAwaitingEmail:
		value = strings.TrimSpace(value)
		if !ValidateEmail(value) {
			return m.reprompt(ctx, sess, ev, now, m.messages.InvalidEmail,
				wrap(ErrValidation, errors.New("malformed email address")))
		}
	case StageAwaitingSubject:
		if Blank(value) {
			return m.reprompt(ctx, sess, ev, now, m.messages.BlankSubject,
				wrap(ErrValidation, errors.New("blank subject")))
		}
	case StageAwaitingName:
		if Blank(value) {
			return m.reprompt(ctx, sess, ev, now, m.messages.BlankName,
				wrap(ErrValidation, errors.New("blank recipient name")))
		}
	}

	next, err := sess.collect(value, now)
	if err != nil {
		return m.abort(ctx, sess, ev, err)
	}
	next.TimerToken = m.timers.Arm(next.UserID)
	m.store.Replace(next)

	logger.Info(ctx, logComponent, "stage.advance",
		slog.String("from_stage", sess.Stage.String()),
		slog.String("to_stage", next.Stage.String()),
	)
	m.reply(ctx, next.UserID, m.messages.prompt(next.Stage))
	return Transition{
		UserID:    next.UserID,
		SessionID: next.ID,
		Event:     ev.Kind,
		From:      sess.Stage,
		To:        next.Stage,
	}
}

func (m *Machine) finish(ctx context.Context, sess Session, ev Event) Transition {
	ctx = logger.WithSession(ctx, sess.ID, sess.UserID)

	outcome, err := m.resolver.Resolve(ctx, ev)
	if err != nil {
		logger.Error(ctx, logComponent, "attachment.fetch",
			slog.String("status", "fail"),
			slog.String("kind", string(ev.Kind)),
			slog.String("err", err.Error()),
		)
		m.terminate(ctx, sess, EndTransportFailed, m.messages.Failed)
		return m.ended(sess, ev, err)
	}
	if !outcome.Accepted() {
		return m.reprompt(ctx, sess, ev, m.clock.Now(), m.messages.InvalidAttachment,
			wrap(ErrAttachmentInvalid, fmt.Errorf("unusable %s event", ev.Kind)))
	}

	fields := sess.Fields
	fields.Attachment = outcome.Attachment
	attrs := []slog.Attr{slog.String("outcome", "ok"), slog.String("kind", outcome.Kind.String())}
	if a := outcome.Attachment; a != nil {
		attrs = append(attrs, slog.String("filename", a.FileName), slog.Int("bytes", len(a.Data)))
	}
	logger.Info(ctx, logComponent, "attachment.resolve", attrs...)

	// The session stays visible at the attachment stage until delivery returns.
	m.timers.Disarm(sess.UserID)
	if err := m.deliver(ctx, sess, fields); err != nil {
		logger.Error(ctx, logComponent, "mail.deliver",
			slog.String("status", "fail"),
			slog.String("recipient", fields.Email),
			slog.String("err", err.Error()),
		)
		m.terminate(ctx, sess, EndDeliveryFailed, m.messages.Failed)
		return m.ended(sess, ev, wrap(ErrDelivery, err))
	}
	logger.Info(ctx, logComponent, "mail.deliver",
		slog.String("status", "ok"),
		slog.String("recipient", fields.Email),
	)
	m.terminate(ctx, sess, EndCompleted, m.messages.Sent)
	return m.ended(sess, ev, nil)
}

func (m *Machine) deliver(ctx context.Context, sess Session, fields Fields) error {
	if m.deliverer == nil {
		return errors.New("no deliverer configured")
	}
	body, err := m.body.Render(fields)
	if err != nil {
		return err
	}
	return m.deliverer.Deliver(ctx, Message{
		SessionID:  sess.ID,
		UserID:     sess.UserID,
		To:         fields.Email,
		Subject:    fields.Subject,
		Body:       body,
		Attachment: fields.Attachment,
	})
}

// reprompt keeps the stage, refreshes the idle timer and asks again.
func (m *Machine) reprompt(ctx context.Context, sess Session, ev Event, now time.Time, text string, cause error) Transition {
	next := sess.touch(now)
	next.TimerToken = m.timers.Arm(next.UserID)
	m.store.Replace(next)

	logger.Info(ctx, logComponent, "stage.reprompt",
		slog.String("stage", sess.Stage.String()),
		slog.String("kind", string(ev.Kind)),
		slog.String("err", cause.Error()),
	)
	m.reply(ctx, next.UserID, text)
	return Transition{
		UserID:    next.UserID,
		SessionID: next.ID,
		Event:     ev.Kind,
		From:      sess.Stage,
		To:        next.Stage,
		Err:       cause,
	}
}

// abort ends a session after an internal error.
func (m *Machine) abort(ctx context.Context, sess Session, ev Event, cause error) Transition {
	logger.Error(ctx, logComponent, "session.abort",
		slog.String("stage", sess.Stage.String()),
		slog.String("kind", string(ev.Kind)),
		slog.String("err", cause.Error()),
	)
	m.terminate(ctx, sess, EndAborted, m.messages.Failed)
	return m.ended(sess, ev, cause)
}

// Abort ends the session ev was addressed to, if any, after an unrecoverable failure.
func (m *Machine) Abort(ctx context.Context, ev Event, cause error) Transition {
	sess, ok := m.store.Get(ev.UserID)
	if !ok {
		return Transition{UserID: ev.UserID, Event: ev.Kind, Ignored: true}
	}
	return m.abort(logger.WithSession(ctx, sess.ID, sess.UserID), sess, ev, cause)
}

// terminate removes the session and disarms its timer. Both are idempotent, so
// a session is reported as ended once even if terminate races another path.
func (m *Machine) terminate(ctx context.Context, sess Session, reason EndReason, text string) {
	m.timers.Disarm(sess.UserID)
	if _, ok := m.store.Remove(sess.UserID); ok {
		m.observer.SessionEnded(sess, reason)
		logger.Info(ctx, logComponent, "session.end",
			slog.String("from_stage", sess.Stage.String()),
			slog.String("reason", string(reason)),
			slog.Duration("duration", m.clock.Since(sess.CreatedAt)),
		)
	}
	if text != "" {
		m.reply(ctx, sess.UserID, text)
	}
}

func (m *Machine) ended(sess Session, ev Event, err error) Transition {
	return Transition{
		UserID:    sess.UserID,
		SessionID: sess.ID,
		Event:     ev.Kind,
		From:      sess.Stage,
		To:        StageTerminated,
		Err:       err,
	}
}

func (m *Machine) reply(ctx context.Context, userID int64, text string) {
	if m.replier == nil || text == "" {
		return
	}
	m.replier.Reply(ctx, userID, text)
}
