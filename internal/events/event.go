package events

import "github.com/google/uuid"

// Event names for outreach outcomes.
const (
	EventOutreachDispatched = "outreach.dispatched"
	EventOutreachFailed     = "outreach.failed"
)

// OutreachDispatched is published after a follow-up message was sent.
type OutreachDispatched struct {
	BaseEvent
	LeadID   uuid.UUID
	DedupKey string
	Type     string
	Step     string
}

// EventName returns the event identifier.
func (OutreachDispatched) EventName() string { return EventOutreachDispatched }

// OutreachFailed is published when a dispatch or tagging call failed and an
// automation failure row was recorded.
type OutreachFailed struct {
	BaseEvent
	LeadID   uuid.UUID
	DedupKey string
	Event    string
	Error    string
}

// EventName returns the event identifier.
func (OutreachFailed) EventName() string { return EventOutreachFailed }
