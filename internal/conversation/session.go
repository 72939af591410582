package conversation

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// AttachmentKind tells how an attachment reached the bot.
type AttachmentKind string

const (
	// AttachmentDocument is a file sent as a document; it keeps its original name.
	AttachmentDocument AttachmentKind = "document"
	// AttachmentImage is a photo; its name is synthesized from the file id.
	AttachmentImage AttachmentKind = "image"
)

// Attachment is a downloaded file ready to be mailed.
type Attachment struct {
	Kind     AttachmentKind
	FileName string
	Data     []byte
}

// Fields holds the values collected so far. Each is written once, at its stage.
type Fields struct {
	Email         string
	Subject       string
	RecipientName string
	Attachment    *Attachment
}

// Session is the state of one user's conversation.
type Session struct {
	ID             string
	UserID         int64
	Stage          Stage
	Fields         Fields
	CreatedAt      time.Time
	LastActivityAt time.Time

	// TimerToken identifies the armed idle timer owned by this session.
	TimerToken uint64
}

var errFieldSet = errors.New("conversation: field already collected")

// NewSession returns a session waiting for the recipient address.
func NewSession(userID int64, now time.Time) Session {
	return Session{
		ID:             uuid.NewString(),
		UserID:         userID,
		Stage:          StageAwaitingEmail,
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// collect stores value in the field owned by the session's current stage and
// moves the session to the next stage. The receiver is a copy; callers commit
// the result to the Store.
func (s Session) collect(value string, now time.Time) (Session, error) {
	switch s.Stage {
	case StageAwaitingEmail:
		if s.Fields.Email != "" {
			return s, errFieldSet
		}
		s.Fields.Email = value
	case StageAwaitingSubject:
		if s.Fields.Subject != "" {
			return s, errFieldSet
		}
		s.Fields.Subject = value
	case StageAwaitingName:
		if s.Fields.RecipientName != "" {
			return s, errFieldSet
		}
		s.Fields.RecipientName = value
	default:
		return s, errFieldSet
	}
	s.Stage = s.Stage.Next()
	s.LastActivityAt = now
	return s, nil
}

// touch records activity without changing the stage.
func (s Session) touch(now time.Time) Session {
	s.LastActivityAt = now
	return s
}
