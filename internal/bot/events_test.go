package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/mailbot/internal/conversation"

	tele "gopkg.in/telebot.v4"
)

func TestEventFromMessage(t *testing.T) {
	user := &tele.User{ID: 42}

	ev, ok := EventFromMessage(&tele.Message{Sender: user, Text: "hi", Unixtime: 1700000000})
	require.True(t, ok)
	assert.Equal(t, conversation.KindText, ev.Kind)
	assert.Equal(t, "hi", ev.Text)
	assert.Equal(t, int64(42), ev.UserID)
	assert.Equal(t, time.Unix(1700000000, 0), ev.ReceivedAt)

	doc := &tele.Document{File: tele.File{FileID: "doc1", FileSize: 321}, FileName: "cv.pdf"}
	ev, ok = EventFromMessage(&tele.Message{Sender: user, Document: doc})
	require.True(t, ok)
	assert.Equal(t, conversation.KindDocument, ev.Kind)
	require.NotNil(t, ev.Document)
	assert.Equal(t, "doc1", ev.Document.FileID)
	assert.Equal(t, int64(321), ev.Document.Size)
	assert.Equal(t, "cv.pdf", ev.Document.FileName)
	assert.True(t, ev.ReceivedAt.IsZero())

	photo := &tele.Photo{File: tele.File{FileID: "ph1", FileSize: 99}, Width: 1280, Height: 720}
	ev, ok = EventFromMessage(&tele.Message{Sender: user, Photo: photo, Caption: "look"})
	require.True(t, ok)
	assert.Equal(t, conversation.KindImage, ev.Kind)
	require.Len(t, ev.Images, 1)
	assert.Equal(t, "ph1", ev.Images[0].FileID)
	assert.Equal(t, 1280, ev.Images[0].Width)
}

func TestEventFromMessageWithoutSender(t *testing.T) {
	_, ok := EventFromMessage(nil)
	assert.False(t, ok)
	_, ok = EventFromMessage(&tele.Message{Text: "channel post"})
	assert.False(t, ok)
}
