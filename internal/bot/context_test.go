package bot

import (
	"bytes"
	"errors"
	"io"
	"sync"

	tele "gopkg.in/telebot.v4"
)

// fakeContext implements the parts of tele.Context the handlers touch.
type fakeContext struct {
	tele.Context
	update tele.Update
	store  map[string]interface{}

	mu   sync.Mutex
	sent []string
}

func newFakeContext(userID int64, msg *tele.Message) *fakeContext {
	if msg == nil {
		msg = &tele.Message{}
	}
	if msg.Sender == nil {
		msg.Sender = &tele.User{ID: userID}
		msg.Chat = &tele.Chat{ID: userID, Type: tele.ChatPrivate}
	}
	return &fakeContext{
		update: tele.Update{ID: int(userID), Message: msg},
		store:  map[string]interface{}{},
	}
}

func textContext(userID int64, text string) *fakeContext {
	return newFakeContext(userID, &tele.Message{Text: text})
}

func (c *fakeContext) Update() tele.Update { return c.update }

func (c *fakeContext) Message() *tele.Message { return c.update.Message }

func (c *fakeContext) Sender() *tele.User { return c.update.Message.Sender }

func (c *fakeContext) Chat() *tele.Chat { return c.update.Message.Chat }

func (c *fakeContext) Text() string { return c.update.Message.Text }

func (c *fakeContext) Get(key string) interface{} { return c.store[key] }

func (c *fakeContext) Set(key string, v interface{}) { c.store[key] = v }

func (c *fakeContext) Send(what interface{}, _ ...interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := what.(string); ok {
		c.sent = append(c.sent, s)
	}
	return nil
}

func (c *fakeContext) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

// fakeTransport records sends and serves files from memory.
type fakeTransport struct {
	mu    sync.Mutex
	sent  map[int64][]string
	files map[string][]byte
	err   error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sent: map[int64][]string{}, files: map[string][]byte{}}
}

func (t *fakeTransport) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := to.(tele.ChatID)
	t.sent[int64(id)] = append(t.sent[int64(id)], what.(string))
	return &tele.Message{}, nil
}

func (t *fakeTransport) For(chatID int64) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.sent[chatID]...)
}

func (t *fakeTransport) File(f *tele.File) (io.ReadCloser, error) {
	if t.err != nil {
		return nil, t.err
	}
	data, ok := t.files[f.FileID]
	if !ok {
		return nil, errors.New("file not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
