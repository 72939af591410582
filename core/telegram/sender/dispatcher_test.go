package sender

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

type timeoutErr struct{}

func (timeoutErr) Error() string { return "i/o timeout" }
func (timeoutErr) Timeout() bool { return true }
func (timeoutErr) Temporary() bool { return true }

func TestDispatcherKeepsPerKeyOrder(t *testing.T) {
	d := NewDispatcher(Options{Workers: 3, QueueSize: 64})

	var (
		mu  sync.Mutex
		got = map[int64][]int{}
	)
	for i := 0; i < 20; i++ {
		for _, key := range []int64{7, 8, -9} {
			key, i := key, i
			require.NoError(t, d.Enqueue(context.Background(), key, "send.text", "sendMessage", func() error {
				mu.Lock()
				defer mu.Unlock()
				got[key] = append(got[key], i)
				return nil
			}))
		}
	}
	d.Close()

	for _, key := range []int64{7, 8, -9} {
		require.Len(t, got[key], 20)
		for i, v := range got[key] {
			assert.Equal(t, i, v, "key %d", key)
		}
	}
	assert.EqualValues(t, 60, d.SentCount())
	assert.Zero(t, d.ErrorCount())
}

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})

	calls := 0
	require.NoError(t, d.Enqueue(context.Background(), 1, "send.text", "sendMessage", func() error {
		calls++
		if calls == 1 {
			return timeoutErr{}
		}
		return nil
	}))
	d.Close()

	assert.Equal(t, 2, calls)
	assert.EqualValues(t, 1, d.SentCount())
	assert.Zero(t, d.ErrorCount())
}

func TestDispatcherCountsPermanentFailures(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})

	calls := 0
	require.NoError(t, d.Enqueue(context.Background(), 1, "send.text", "sendMessage", func() error {
		calls++
		return errors.New("telegram: chat not found (400)")
	}))
	d.Close()

	assert.Equal(t, 1, calls)
	assert.EqualValues(t, 1, d.ErrorCount())
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(Options{})
	d.Close()
	d.Close()

	err := d.Enqueue(context.Background(), 1, "send.text", "sendMessage", func() error { return nil })
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.Error(t, d.Enqueue(context.Background(), 1, "send.text", "", nil))
}

func TestDispatcherQueueFull(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, d.Enqueue(context.Background(), 1, "block", "", func() error {
		close(started)
		<-release
		return nil
	}))
	<-started
	require.NoError(t, d.Enqueue(context.Background(), 1, "queued", "", func() error { return nil }))
	assert.ErrorIs(t, d.Enqueue(context.Background(), 1, "overflow", "", func() error { return nil }), ErrQueueFull)
	close(release)
	d.Close()
}

func TestErrorClassification(t *testing.T) {
	assert.Equal(t, "timeout", classifyError(context.DeadlineExceeded))
	assert.Equal(t, "http_4xx", classifyError(errors.New("telegram: bad request (400)")))
	assert.Equal(t, "http_5xx", classifyError(&tele.Error{Code: 502, Description: "bad gateway"}))
	assert.Equal(t, "unknown", classifyError(errors.New("boom")))
	assert.Equal(t, "flood", classifyError(&tele.Error{Code: 429, Description: "too many requests"}))

	msg := sanitizeErrorMessage(errors.New(`Post "https://api.telegram.org/bot123456:AA-bb_cc/sendMessage": EOF`))
	assert.NotContains(t, msg, "123456:AA-bb_cc")
	assert.Contains(t, msg, "bot<redacted>")
}

func TestDispatcherBackoff(t *testing.T) {
	d := &Dispatcher{opts: Options{RetryBackoff: time.Second}.withDefaults()}

	delay, retry := d.backoff(tele.FloodError{RetryAfter: 3}, 1)
	assert.True(t, retry)
	assert.Equal(t, 3*time.Second, delay)

	delay, retry = d.backoff(timeoutErr{}, 2)
	assert.True(t, retry)
	assert.Equal(t, 2*time.Second, delay)

	_, retry = d.backoff(errors.New("telegram: chat not found (400)"), 1)
	assert.False(t, retry)
}

func TestDispatcherGivesUpAtMaxDuration(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 100, RetryBackoff: 5 * time.Millisecond, MaxDuration: 20 * time.Millisecond})
	calls := 0
	require.NoError(t, d.Enqueue(context.Background(), 1, "send.text", "sendMessage", func() error {
		calls++
		return timeoutErr{}
	}))
	d.Close()

	assert.Less(t, calls, 100)
	assert.EqualValues(t, 1, d.ErrorCount())
}

func TestShardIndexHandlesNegativeKeys(t *testing.T) {
	for _, key := range []int64{0, 7, -7, -1 << 63} {
		i := shardIndex(key, 4)
		assert.GreaterOrEqual(t, i, 0)
		assert.Less(t, i, 4)
	}
}
