package conversation

import "context"

// Replier sends a text message to a user. Delivery is best effort: failures are
// handled and logged by the implementation and never reach the state machine.
type Replier interface {
	Reply(ctx context.Context, userID int64, text string)
}

// FileFetcher downloads the bytes of a transport-held file.
type FileFetcher interface {
	FetchBytes(ctx context.Context, ref FileRef) ([]byte, error)
}

// Message is what the conversation hands over for delivery.
type Message struct {
	SessionID  string
	UserID     int64
	To         string
	Subject    string
	Body       string
	Attachment *Attachment
}

// Deliverer sends a collected Message. It is called once per completed
// conversation and is never retried.
type Deliverer interface {
	Deliver(ctx context.Context, msg Message) error
}

// Observer receives lifecycle notifications, e.g. for metrics.
type Observer interface {
	SessionStarted(s Session)
	SessionEnded(s Session, reason EndReason)
	EventHandled(ev Event, t Transition)
}

// ReplierFunc adapts a function to Replier.
type ReplierFunc func(ctx context.Context, userID int64, text string)

// Reply calls f.
func (f ReplierFunc) Reply(ctx context.Context, userID int64, text string) {
	f(ctx, userID, text)
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, msg Message) error

// Deliver calls f.
func (f DelivererFunc) Deliver(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

type nopObserver struct{}

func (nopObserver) SessionStarted(Session) {}

func (nopObserver) SessionEnded(Session, EndReason) {}

func (nopObserver) EventHandled(Event, Transition) {}
