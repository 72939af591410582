package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/m3rciful/mailbot/core/logger"
)

// Options wires the collaborators of an Engine. Zero values select defaults.
type Options struct {
	Replier     Replier
	Fetcher     FileFetcher
	Deliverer   Deliverer
	Observer    Observer
	Clock       clockwork.Clock
	IdleTimeout time.Duration
	Messages    Messages
	Body        *BodyRenderer
}

type queued struct {
	ctx context.Context
	ev  Event
}

// lane holds the not yet processed events of one user. A lane exists in the
// engine's map exactly while a goroutine is draining it.
type lane struct {
	queue []queued
}

// Engine accepts inbound events and runs them through the Machine. Events of
// one user are handled one at a time in arrival order; different users are
// handled concurrently.
type Engine struct {
	machine *Machine
	store   *Store
	timers  *Supervisor
	clock   clockwork.Clock

	mu      sync.Mutex
	lanes   map[int64]*lane
	pending int
	idle    chan struct{}
	closed  bool
}

// NewEngine builds an Engine with its Store, Supervisor and Machine.
func NewEngine(opts Options) *Engine {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	body := opts.Body
	if body == nil {
		body = defaultBody()
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	e := &Engine{
		store: NewStore(),
		clock: clock,
		lanes: make(map[int64]*lane),
		idle:  closedChan(),
	}
	e.timers = NewSupervisor(clock, opts.IdleTimeout, e.onTimeout)
	e.machine = &Machine{
		store:     e.store,
		timers:    e.timers,
		resolver:  NewResolver(opts.Fetcher),
		deliverer: opts.Deliverer,
		replier:   opts.Replier,
		body:      body,
		messages:  opts.Messages.withDefaults(),
		clock:     clock,
		observer:  observer,
	}
	return e
}

// Store exposes the session store for inspection.
func (e *Engine) Store() *Store {
	return e.store
}

// Supervisor exposes the idle timers for inspection.
func (e *Engine) Supervisor() *Supervisor {
	return e.timers
}

// Submit queues ev on its user's lane and returns without waiting for it to be
// handled. ctx only contributes values (logging metadata); its cancellation
// does not abort the handling.
func (e *Engine) Submit(ctx context.Context, ev Event) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = e.clock.Now()
	}
	item := queued{ctx: context.WithoutCancel(ctx), ev: ev}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	if e.pending == 0 {
		e.idle = make(chan struct{})
	}
	e.pending++

	l, running := e.lanes[ev.UserID]
	if !running {
		l = &lane{}
		e.lanes[ev.UserID] = l
	}
	l.queue = append(l.queue, item)
	if !running {
		go e.drain(ev.UserID, l)
	}
	return nil
}

// Wait blocks until every submitted event has been handled or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	e.mu.Lock()
	idle := e.idle
	e.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events, cancels idle timers and waits for queued
// events to be handled. In-flight deliveries are allowed to finish.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.timers.Stop()
	if err := e.Wait(ctx); err != nil {
		return fmt.Errorf("conversation: drain lanes: %w", err)
	}
	return nil
}

func (e *Engine) drain(userID int64, l *lane) {
	for {
		e.mu.Lock()
		if len(l.queue) == 0 {
			delete(e.lanes, userID)
			e.mu.Unlock()
			return
		}
		item := l.queue[0]
		l.queue[0] = queued{}
		l.queue = l.queue[1:]
		e.mu.Unlock()

		e.process(item)

		e.mu.Lock()
		e.pending--
		if e.pending == 0 {
			close(e.idle)
		}
		e.mu.Unlock()
	}
}

func (e *Engine) process(item queued) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(item.ctx, logComponent, "event.panic",
				slog.Int64("user_id", item.ev.UserID),
				slog.String("kind", string(item.ev.Kind)),
				slog.Any("err", r),
				slog.String("stack", string(debug.Stack())),
			)
			e.abort(item, fmt.Errorf("panic: %v", r))
		}
	}()

	start := time.Now()
	t := e.machine.Handle(item.ctx, item.ev)
	e.machine.observer.EventHandled(item.ev, t)
	logger.Debug(item.ctx, logComponent, "event.handled",
		slog.Int64("user_id", item.ev.UserID),
		slog.String("kind", string(item.ev.Kind)),
		slog.String("from_stage", t.From.String()),
		slog.String("to_stage", t.To.String()),
		slog.Bool("ignored", t.Ignored),
		slog.Duration("duration", logger.Took(start)),
	)
}

func (e *Engine) abort(item queued, cause error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(item.ctx, logComponent, "event.abort_panic",
				slog.Int64("user_id", item.ev.UserID),
				slog.Any("err", r),
			)
		}
	}()
	e.machine.Abort(item.ctx, item.ev, cause)
}

func (e *Engine) onTimeout(userID int64, token uint64) {
	if err := e.Submit(context.Background(), timeoutEvent(userID, token)); err != nil {
		logger.Debug(context.Background(), logComponent, "timeout.dropped",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
	}
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func defaultBody() *BodyRenderer {
	r, err := NewBodyRenderer(DefaultBodyTemplate, "")
	if err != nil {
		panic(err)
	}
	return r
}
