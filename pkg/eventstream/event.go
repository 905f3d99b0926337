package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/scribe/pkg/llm"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnAppended is emitted after a turn is added to a session's log.
	EventTypeTurnAppended = "scribe.turn.appended"

	// EventTypeSessionSaved is emitted after a session is written to the store.
	EventTypeSessionSaved = "scribe.session.saved"

	// EventTypeSessionRemoved is emitted after a session is deleted.
	EventTypeSessionRemoved = "scribe.session.removed"
)

// SessionEvent is a transport-neutral event payload describing a change to
// one owner's session.
type SessionEvent struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	Owner         string      `json:"owner"`
	Session       string      `json:"session,omitempty"`
	Source        EventSource `json:"source"`

	// Turn and TurnIndex are set for turn events.
	Turn      *llm.Turn `json:"turn,omitempty"`
	TurnIndex int       `json:"turn_index,omitempty"`

	// Turns is the session length after the change.
	Turns int `json:"turns"`
}

// EventSource identifies the upstream that produced an assistant turn.
type EventSource struct {
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// NewSessionEvent returns an event of the given type with a fresh id and
// emission time.
func NewSessionEvent(eventType, owner, session string) *SessionEvent {
	return &SessionEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Owner:         owner,
		Session:       session,
	}
}

// Key is the partitioning key of the event: all events of one session share
// a key so they stay ordered.
func (e *SessionEvent) Key() string {
	return e.Owner + "/" + e.Session
}
