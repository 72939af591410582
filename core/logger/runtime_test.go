package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextMetaIsCopiedOnWrite(t *testing.T) {
	parent := WithUpdateMeta(WithRID(context.Background(), "1:2:3"), 1, 3, 2)
	child := WithHandler(WithSession(parent, "sess-9", 42), "conversation")

	assert.Equal(t, "1:2:3", RIDFrom(child))
	assert.Equal(t, 1, UpdateIDFrom(child))
	assert.Equal(t, int64(3), UserIDFrom(child), "the update's user wins over the session owner")
	assert.Equal(t, int64(2), ChatIDFrom(child))
	assert.Equal(t, "sess-9", SessionIDFrom(child))
	assert.Equal(t, "conversation", HandlerFrom(child))

	assert.Empty(t, SessionIDFrom(parent))
	assert.Empty(t, HandlerFrom(parent))

	timer := WithSession(context.Background(), "sess-9", 42)
	assert.Equal(t, int64(42), UserIDFrom(timer))

	assert.Zero(t, UserIDFrom(nil))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "a\tb\nc", Sanitize("a\tb\nc\x00\x7f​"))
	assert.Equal(t, "héll", SanitizeLimit("héllo", 4))
	assert.Equal(t, "hé", SanitizeLimit("hé", 10))
	assert.Empty(t, SanitizeLimit("x", 0))
}

func TestCompactRID(t *testing.T) {
	assert.Equal(t, "a.1.z", CompactRID(BuildRID(10, 1, 35)))
	assert.Equal(t, "bogus", CompactRID("bogus"))
	assert.Equal(t, "1::2", CompactRID("1::2"))
}
