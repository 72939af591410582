package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

const testWindow = 5 * time.Minute

type reply struct {
	UserID int64
	Text   string
}

type recordingReplier struct {
	mu      sync.Mutex
	replies []reply
}

func (r *recordingReplier) Reply(_ context.Context, userID int64, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, reply{UserID: userID, Text: text})
}

func (r *recordingReplier) For(userID int64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, rp := range r.replies {
		if rp.UserID == userID {
			out = append(out, rp.Text)
		}
	}
	return out
}

func (r *recordingReplier) Count(userID int64, text string) int {
	n := 0
	for _, t := range r.For(userID) {
		if t == text {
			n++
		}
	}
	return n
}

type stubFetcher struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
	calls []string
}

func (f *stubFetcher) FetchBytes(_ context.Context, ref FileRef) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ref.FileID)
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.files[ref.FileID]
	if !ok {
		return nil, errors.New("file not found")
	}
	return data, nil
}

type recordingDeliverer struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (d *recordingDeliverer) Deliver(_ context.Context, msg Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, msg)
	return d.err
}

func (d *recordingDeliverer) Sent() []Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Message(nil), d.sent...)
}

type harness struct {
	engine    *Engine
	clock     *clockwork.FakeClock
	replier   *recordingReplier
	fetcher   *stubFetcher
	deliverer *recordingDeliverer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:     clockwork.NewFakeClock(),
		replier:   &recordingReplier{},
		fetcher:   &stubFetcher{files: map[string][]byte{}},
		deliverer: &recordingDeliverer{},
	}
	h.engine = NewEngine(Options{
		Replier:     ReplierFunc(h.replier.Reply),
		Fetcher:     h.fetcher,
		Deliverer:   h.deliverer,
		Clock:       h.clock,
		IdleTimeout: testWindow,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.engine.Close(ctx)
	})
	return h
}

func (h *harness) submit(t *testing.T, events ...Event) {
	t.Helper()
	for _, ev := range events {
		require.NoError(t, h.engine.Submit(context.Background(), ev))
	}
	h.wait(t)
}

func (h *harness) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.engine.Wait(ctx))
}

func texts(userID int64, values ...string) []Event {
	out := make([]Event, 0, len(values))
	for _, v := range values {
		out = append(out, TextEvent(userID, v))
	}
	return out
}
