package conversation

// Stage identifies a step of the collection dialog.
type Stage string

const (
	// StageNone is reported for users without a session.
	StageNone Stage = ""
	// StageAwaitingEmail waits for the recipient address.
	StageAwaitingEmail Stage = "awaiting_email"
	// StageAwaitingSubject waits for the subject line.
	StageAwaitingSubject Stage = "awaiting_subject"
	// StageAwaitingName waits for the recipient name used in the greeting.
	StageAwaitingName Stage = "awaiting_name"
	// StageAwaitingAttachment waits for a document, a photo or "no".
	StageAwaitingAttachment Stage = "awaiting_attachment"
	// StageTerminated is final; sessions in it are already removed from the store.
	StageTerminated Stage = "terminated"
)

// forward is the only place the stage order is defined.
var forward = map[Stage]Stage{
	StageAwaitingEmail:      StageAwaitingSubject,
	StageAwaitingSubject:    StageAwaitingName,
	StageAwaitingName:       StageAwaitingAttachment,
	StageAwaitingAttachment: StageTerminated,
}

// Next returns the stage that follows s on success.
func (s Stage) Next() Stage {
	if n, ok := forward[s]; ok {
		return n
	}
	return StageTerminated
}

// Active reports whether s belongs to a live session.
func (s Stage) Active() bool {
	_, ok := forward[s]
	return ok
}

// Rank orders stages; transitions never decrease it.
func (s Stage) Rank() int {
	rank := 0
	for cur := StageAwaitingEmail; ; cur = forward[cur] {
		rank++
		if cur == s {
			return rank
		}
		if cur == StageTerminated {
			return 0
		}
	}
}

func (s Stage) String() string {
	if s == StageNone {
		return "none"
	}
	return string(s)
}
