package conversation

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLifecycle(t *testing.T) {
	s := NewStore()
	now := time.Unix(1700000000, 0)

	_, ok := s.Get(1)
	assert.False(t, ok)
	assert.Equal(t, StageNone, s.Stage(1))

	sess, created := s.GetOrCreate(1, now)
	require.True(t, created)
	assert.Equal(t, StageAwaitingEmail, sess.Stage)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, now, sess.CreatedAt)

	again, created := s.GetOrCreate(1, now.Add(time.Second))
	assert.False(t, created)
	assert.Equal(t, sess.ID, again.ID)

	next, err := sess.collect("a@b.c", now.Add(time.Second))
	require.NoError(t, err)
	prev, replaced := s.Replace(next)
	assert.True(t, replaced)
	assert.Equal(t, StageAwaitingEmail, prev.Stage)
	assert.Equal(t, StageAwaitingSubject, s.Stage(1))
	assert.Equal(t, 1, s.Len())

	removed, ok := s.Remove(1)
	require.True(t, ok)
	assert.Equal(t, "a@b.c", removed.Fields.Email)
	_, ok = s.Remove(1)
	assert.False(t, ok)
	assert.Zero(t, s.Len())
}

func TestSessionCollectWritesEachFieldOnce(t *testing.T) {
	now := time.Unix(1700000000, 0)
	sess := NewSession(9, now)

	var err error
	for _, v := range []string{"a@b.c", "Hello", "Ann"} {
		sess, err = sess.collect(v, now)
		require.NoError(t, err)
	}
	assert.Equal(t, StageAwaitingAttachment, sess.Stage)
	assert.Equal(t, Fields{Email: "a@b.c", Subject: "Hello", RecipientName: "Ann"}, sess.Fields)

	_, err = sess.collect("again", now)
	assert.ErrorIs(t, err, errFieldSet)

	rewound := sess
	rewound.Stage = StageAwaitingSubject
	_, err = rewound.collect("other", now)
	assert.ErrorIs(t, err, errFieldSet)
}

func TestStoreReadersSeeWholeSessions(t *testing.T) {
	s := NewStore()
	now := time.Unix(1700000000, 0)
	sess, _ := s.GetOrCreate(3, now)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			got, ok := s.Get(3)
			if !ok {
				continue
			}
			// An email is present exactly from the subject stage onwards.
			if (got.Fields.Email != "") != (got.Stage.Rank() >= StageAwaitingSubject.Rank()) {
				t.Errorf("torn session: stage=%s email=%q", got.Stage, got.Fields.Email)
				return
			}
		}
	}()

	for i := 0; i < 500; i++ {
		next, err := sess.collect("a@b.c", now)
		require.NoError(t, err)
		s.Replace(next)
		s.Replace(sess)
	}
	close(stop)
	wg.Wait()
}
