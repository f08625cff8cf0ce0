package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status_changed"
	TypeProductCreated     = "product.created"
	TypeProductLowStock    = "product.low_stock"
	TypeNotification       = "notification"
)

const (
	// ChannelAdmin reaches every connected operator.
	ChannelAdmin = "admin"
	// ChannelBroadcast reaches every authenticated listener.
	ChannelBroadcast = "all"
)

// UserChannel addresses a single user's listeners.
func UserChannel(userID string) string {
	return "user:" + userID
}

type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Message    string         `json:"message"`
	SubjectID  string         `json:"subject_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`

	// Channels lists hub audiences; empty means ChannelAdmin.
	Channels []string `json:"-"`
}

// New fills the id and timestamp of an event.
func New(eventType, message, subjectID string, data map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Message:    message,
		SubjectID:  subjectID,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}
}

// Emitter delivers domain events to listeners. Emit must not block the
// caller for long; failures are reported but never undo the domain write.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

type nop struct{}

// Nop discards every event.
func Nop() Emitter { return nop{} }

func (nop) Emit(context.Context, Event) error { return nil }
