package domain

import "time"

type EventType string

const (
	EventTicketCreated EventType = "ticket.created"
	EventTicketCalled  EventType = "ticket.called"
	EventTicketServed  EventType = "ticket.served"
	EventQueueReset    EventType = "queue.reset"
)

// QueueEvent describes one committed change to the queue. Ticket fields are
// zero for queue.reset.
type QueueEvent struct {
	Type         EventType
	TicketID     string
	TicketNumber int
	TicketName   string
	OccurredAt   time.Time
}

// NewTicketEvent builds an event about a single ticket.
func NewTicketEvent(typ EventType, t Ticket, at time.Time) QueueEvent {
	return QueueEvent{
		Type:         typ,
		TicketID:     t.ID,
		TicketNumber: t.Number,
		TicketName:   t.Name,
		OccurredAt:   at,
	}
}
