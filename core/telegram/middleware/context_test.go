package middleware

import (
	tele "gopkg.in/telebot.v4"
)

// fakeContext implements the parts of tele.Context the middlewares touch.
type fakeContext struct {
	tele.Context
	update tele.Update
	store  map[string]interface{}
}

func newFakeContext(userID int64, msg *tele.Message) *fakeContext {
	if msg != nil && msg.Sender == nil {
		msg.Sender = &tele.User{ID: userID}
		msg.Chat = &tele.Chat{ID: userID, Type: tele.ChatPrivate}
	}
	return &fakeContext{
		update: tele.Update{ID: int(userID) * 10, Message: msg},
		store:  map[string]interface{}{},
	}
}

func (c *fakeContext) Update() tele.Update { return c.update }

func (c *fakeContext) Message() *tele.Message { return c.update.Message }

func (c *fakeContext) Sender() *tele.User {
	if c.update.Message == nil {
		return nil
	}
	return c.update.Message.Sender
}

func (c *fakeContext) Chat() *tele.Chat {
	if c.update.Message == nil {
		return nil
	}
	return c.update.Message.Chat
}

func (c *fakeContext) Text() string {
	if c.update.Message == nil {
		return ""
	}
	return c.update.Message.Text
}

func (c *fakeContext) Get(key string) interface{} { return c.store[key] }

func (c *fakeContext) Set(key string, v interface{}) { c.store[key] = v }
