package domain

import (
	"fmt"
	"time"
)

// QueueState is the whole queue: every ticket issued since the last reset,
// in issuance order, plus the ticket currently at the counter.
type QueueState struct {
	Tickets          []Ticket
	CurrentlyServing *Ticket
	NextNumber       int
}

// NewQueueState returns an empty queue whose first ticket will be number 1.
func NewQueueState() QueueState {
	return QueueState{
		Tickets:    []Ticket{},
		NextNumber: 1,
	}
}

// Clone returns a deep copy that shares no memory with s.
func (s QueueState) Clone() QueueState {
	out := QueueState{
		Tickets:    make([]Ticket, len(s.Tickets)),
		NextNumber: s.NextNumber,
	}
	copy(out.Tickets, s.Tickets)
	if s.CurrentlyServing != nil {
		serving := *s.CurrentlyServing
		out.CurrentlyServing = &serving
	}
	return out
}

// Waiting returns the tickets still waiting, oldest first.
func (s QueueState) Waiting() []Ticket {
	waiting := make([]Ticket, 0, len(s.Tickets))
	for _, t := range s.Tickets {
		if t.Status == TicketStatusWaiting {
			waiting = append(waiting, t)
		}
	}
	return waiting
}

// Serving returns a copy of the ticket being served, if any.
func (s QueueState) Serving() (Ticket, bool) {
	if s.CurrentlyServing == nil {
		return Ticket{}, false
	}
	return *s.CurrentlyServing, true
}

// nextWaitingIndex returns the index of the oldest waiting ticket, or -1.
func (s QueueState) nextWaitingIndex() int {
	for i, t := range s.Tickets {
		if t.Status == TicketStatusWaiting {
			return i
		}
	}
	return -1
}

func (s QueueState) indexOf(id string) int {
	for i, t := range s.Tickets {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// Issue appends a waiting ticket numbered NextNumber and advances the counter.
// The name must already be normalized. createdAt is stored in UTC at
// TimestampPrecision.
func (s *QueueState) Issue(id, name string, createdAt time.Time) Ticket {
	ticket := Ticket{
		ID:        id,
		Number:    s.NextNumber,
		Name:      name,
		Status:    TicketStatusWaiting,
		CreatedAt: createdAt.UTC().Truncate(TimestampPrecision),
	}
	s.Tickets = append(s.Tickets, ticket)
	s.NextNumber++
	return ticket
}

// Advance moves the oldest waiting ticket to the counter, marking the
// previous one served. It returns the ticket now serving, the ticket that was
// just served (nil when the counter was free) and false when nobody waits.
func (s *QueueState) Advance() (called Ticket, served *Ticket, ok bool) {
	next := s.nextWaitingIndex()
	if next < 0 {
		return Ticket{}, nil, false
	}
	if s.CurrentlyServing != nil {
		if i := s.indexOf(s.CurrentlyServing.ID); i >= 0 {
			s.Tickets[i].Status = TicketStatusServed
			done := s.Tickets[i]
			served = &done
		}
	}
	s.Tickets[next].Status = TicketStatusServing
	called = s.Tickets[next]
	s.CurrentlyServing = &called
	return called, served, true
}

// Validate checks the queue invariants. It is used on state loaded from a
// store, where a bad row would otherwise corrupt numbering.
func (s QueueState) Validate() error {
	if s.NextNumber != len(s.Tickets)+1 {
		return fmt.Errorf("next number %d does not follow %d tickets", s.NextNumber, len(s.Tickets))
	}
	var serving *Ticket
	for i := range s.Tickets {
		t := s.Tickets[i]
		if t.Number != i+1 {
			return fmt.Errorf("ticket %s has number %d at position %d", t.ID, t.Number, i+1)
		}
		if !t.Status.Valid() {
			return fmt.Errorf("ticket %s has unknown status %q", t.ID, t.Status)
		}
		if t.Status == TicketStatusServing {
			if serving != nil {
				return fmt.Errorf("tickets %s and %s are both serving", serving.ID, t.ID)
			}
			serving = &s.Tickets[i]
		}
	}
	switch {
	case serving == nil && s.CurrentlyServing != nil:
		return fmt.Errorf("currently serving %s but no ticket is serving", s.CurrentlyServing.ID)
	case serving != nil && s.CurrentlyServing == nil:
		return fmt.Errorf("ticket %s is serving but nothing is currently serving", serving.ID)
	case serving != nil && serving.ID != s.CurrentlyServing.ID:
		return fmt.Errorf("currently serving %s does not match serving ticket %s", s.CurrentlyServing.ID, serving.ID)
	}
	return nil
}
