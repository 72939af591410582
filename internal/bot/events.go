package bot

import (
	"github.com/m3rciful/mailbot/internal/conversation"

	tele "gopkg.in/telebot.v4"
)

// EventFromMessage translates an inbound message. ok is false for messages
// without a sender, e.g. channel posts.
func EventFromMessage(msg *tele.Message) (ev conversation.Event, ok bool) {
	if msg == nil || msg.Sender == nil {
		return conversation.Event{}, false
	}
	uid := msg.Sender.ID

	switch {
	case msg.Document != nil:
		d := msg.Document
		ev = conversation.DocumentEvent(uid, conversation.DocumentRef{
			FileRef:  conversation.FileRef{FileID: d.FileID, Size: d.FileSize},
			FileName: d.FileName,
		})
	case msg.Photo != nil:
		// telebot keeps only the largest resolution of a photo.
		p := msg.Photo
		ev = conversation.ImageEvent(uid, conversation.ImageRef{
			FileRef: conversation.FileRef{FileID: p.FileID, Size: p.FileSize},
			Width:   p.Width,
			Height:  p.Height,
		})
	default:
		ev = conversation.TextEvent(uid, msg.Text)
	}
	if msg.Unixtime > 0 {
		ev.ReceivedAt = msg.Time()
	}
	return ev, true
}
