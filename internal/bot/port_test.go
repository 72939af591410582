package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/mailbot/internal/conversation"
)

func TestPortReplyRequiresBinding(t *testing.T) {
	p := NewPort(0)
	tr := newFakeTransport()

	p.Reply(context.Background(), 7, "dropped")
	assert.Empty(t, tr.For(7))

	p.Bind(tr)
	p.Reply(context.Background(), 7, "hello")
	p.Reply(context.Background(), 7, "again")
	assert.Equal(t, []string{"hello", "again"}, tr.For(7))

	p.Bind(nil)
	p.Reply(context.Background(), 7, "late")
	assert.Len(t, tr.For(7), 2)
}

func TestPortFetchBytes(t *testing.T) {
	p := NewPort(8)
	tr := newFakeTransport()
	tr.files["small"] = []byte("12345")
	tr.files["big"] = []byte("123456789")

	_, err := p.FetchBytes(context.Background(), conversation.FileRef{FileID: "small"})
	require.Error(t, err, "unbound port cannot download")

	p.Bind(tr)
	data, err := p.FetchBytes(context.Background(), conversation.FileRef{FileID: "small", Size: 5})
	require.NoError(t, err)
	assert.Equal(t, []byte("12345"), data)

	_, err = p.FetchBytes(context.Background(), conversation.FileRef{FileID: "big", Size: 9})
	assert.ErrorIs(t, err, ErrFileTooLarge, "announced size is checked before download")

	_, err = p.FetchBytes(context.Background(), conversation.FileRef{FileID: "big"})
	assert.ErrorIs(t, err, ErrFileTooLarge, "unannounced size is checked while reading")

	_, err = p.FetchBytes(context.Background(), conversation.FileRef{FileID: "missing"})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.FetchBytes(ctx, conversation.FileRef{FileID: "small"})
	assert.ErrorIs(t, err, context.Canceled)
}
