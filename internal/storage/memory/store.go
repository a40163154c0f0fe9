// Package memory keeps queue state in process. It is the default store when
// no database is configured; state does not survive a restart.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/cimillas/walkin-queue/internal/domain"
)

type Store struct {
	mu    sync.Mutex
	state domain.QueueState
}

func NewStore() *Store {
	return &Store{state: domain.NewQueueState()}
}

func (s *Store) LoadQueue(ctx context.Context) (domain.QueueState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone(), nil
}

func (s *Store) AppendTicket(ctx context.Context, ticket domain.Ticket, nextNumber int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ticket.Number != s.state.NextNumber {
		return fmt.Errorf("append ticket %d: expected number %d", ticket.Number, s.state.NextNumber)
	}
	s.state.Tickets = append(s.state.Tickets, ticket)
	s.state.NextNumber = nextNumber
	return nil
}

func (s *Store) AdvanceServing(ctx context.Context, servedID, servingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.Clone()
	if servedID != "" {
		i := indexOf(next.Tickets, servedID)
		if i < 0 || next.Tickets[i].Status != domain.TicketStatusServing {
			return fmt.Errorf("advance serving: ticket %s is not serving", servedID)
		}
		next.Tickets[i].Status = domain.TicketStatusServed
	}
	i := indexOf(next.Tickets, servingID)
	if i < 0 || next.Tickets[i].Status != domain.TicketStatusWaiting {
		return fmt.Errorf("advance serving: ticket %s is not waiting", servingID)
	}
	next.Tickets[i].Status = domain.TicketStatusServing
	serving := next.Tickets[i]
	next.CurrentlyServing = &serving

	s.state = next
	return nil
}

func (s *Store) ResetQueue(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = domain.NewQueueState()
	return nil
}

func indexOf(tickets []domain.Ticket, id string) int {
	for i, t := range tickets {
		if t.ID == id {
			return i
		}
	}
	return -1
}
