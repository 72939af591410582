package conversation

import "time"

// EventKind classifies an inbound update.
type EventKind string

const (
	// KindStart opens (or restarts) a conversation.
	KindStart EventKind = "start"
	// KindCancel aborts the current conversation.
	KindCancel EventKind = "cancel"
	// KindText carries a plain text message.
	KindText EventKind = "text"
	// KindDocument carries a file sent as a document.
	KindDocument EventKind = "document"
	// KindImage carries a photo in one or more resolutions.
	KindImage EventKind = "image"
	// KindTimeout is synthesized by the Supervisor when a session idles out.
	KindTimeout EventKind = "timeout"
)

// FileRef points at a file held by the transport.
type FileRef struct {
	FileID string
	// Size is the size announced by the transport, 0 when unknown.
	Size int64
}

// DocumentRef describes an inbound document.
type DocumentRef struct {
	FileRef
	FileName string
}

// ImageRef describes one resolution of an inbound photo.
type ImageRef struct {
	FileRef
	Width  int
	Height int
}

// Event is one inbound update addressed to a user's session.
// Images is ordered by ascending resolution, as the transport delivers it.
type Event struct {
	UserID     int64
	Kind       EventKind
	Text       string
	Document   *DocumentRef
	Images     []ImageRef
	ReceivedAt time.Time

	timerToken uint64
}

// TextEvent builds a text event.
func TextEvent(userID int64, text string) Event {
	return Event{UserID: userID, Kind: KindText, Text: text}
}

// StartEvent builds a start command event.
func StartEvent(userID int64) Event {
	return Event{UserID: userID, Kind: KindStart}
}

// CancelEvent builds a cancel command event.
func CancelEvent(userID int64) Event {
	return Event{UserID: userID, Kind: KindCancel}
}

// DocumentEvent builds a document event.
func DocumentEvent(userID int64, doc DocumentRef) Event {
	return Event{UserID: userID, Kind: KindDocument, Document: &doc}
}

// ImageEvent builds a photo event from its resolution variants.
func ImageEvent(userID int64, variants ...ImageRef) Event {
	return Event{UserID: userID, Kind: KindImage, Images: variants}
}

func timeoutEvent(userID int64, token uint64) Event {
	return Event{UserID: userID, Kind: KindTimeout, timerToken: token}
}
