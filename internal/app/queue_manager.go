package app

import (
	"context"
	"sync"

	"github.com/cimillas/walkin-queue/internal/clock"
	"github.com/cimillas/walkin-queue/internal/domain"
	"github.com/rs/zerolog"
)

// QueueStore persists queue transitions. Each method must apply all of its
// writes or none of them.
type QueueStore interface {
	LoadQueue(ctx context.Context) (domain.QueueState, error)
	AppendTicket(ctx context.Context, ticket domain.Ticket, nextNumber int) error
	// AdvanceServing marks servedID served (when non-empty) and servingID serving.
	AdvanceServing(ctx context.Context, servedID, servingID string) error
	ResetQueue(ctx context.Context) error
}

// EventPublisher receives committed queue events.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.QueueEvent) error
}

// QueueManager owns the queue state and is the only writer to it. All
// mutations are serialized; reads see whole transitions only.
type QueueManager struct {
	mu    sync.RWMutex
	state domain.QueueState

	// pubMu orders event delivery. It is taken before mu is released.
	pubMu sync.Mutex

	store     QueueStore
	clock     clock.Clock
	publisher EventPublisher
	logger    zerolog.Logger
	newID     func() string
}

type QueueManagerOption func(*QueueManager)

// WithPublisher sends an event for every committed transition to p.
func WithPublisher(p EventPublisher) QueueManagerOption {
	return func(m *QueueManager) {
		m.publisher = p
	}
}

func WithLogger(l zerolog.Logger) QueueManagerOption {
	return func(m *QueueManager) {
		m.logger = l
	}
}

// WithIDGenerator overrides ticket ID allocation.
func WithIDGenerator(fn func() string) QueueManagerOption {
	return func(m *QueueManager) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// NewQueueManager restores the persisted queue from store and returns a
// manager ready to serve requests.
func NewQueueManager(ctx context.Context, store QueueStore, clk clock.Clock, opts ...QueueManagerOption) (*QueueManager, error) {
	m := &QueueManager{
		store:  store,
		clock:  clk,
		logger: zerolog.Nop(),
		newID:  newTicketID,
	}
	for _, opt := range opts {
		opt(m)
	}

	state, err := store.LoadQueue(ctx)
	if err != nil {
		return nil, &domain.StorageError{Op: "load queue", Err: err}
	}
	if state.Tickets == nil {
		state.Tickets = []domain.Ticket{}
	}
	if err := state.Validate(); err != nil {
		return nil, &domain.StorageError{Op: "load queue", Err: err}
	}
	m.state = state

	m.logger.Info().
		Int("tickets", len(state.Tickets)).
		Int("next_number", state.NextNumber).
		Msg("queue restored")
	return m, nil
}

// CallResult is the outcome of CallNext. Called is false when nobody was
// waiting and the state is unchanged.
type CallResult struct {
	State  domain.QueueState
	Called bool
}

// State returns a snapshot of the queue.
func (m *QueueManager) State() domain.QueueState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Clone()
}

// CreateTicket issues the next numbered ticket for name.
func (m *QueueManager) CreateTicket(ctx context.Context, name string) (domain.Ticket, error) {
	name, err := domain.NormalizeName(name)
	if err != nil {
		return domain.Ticket{}, err
	}

	m.mu.Lock()

	next := m.state.Clone()
	ticket := next.Issue(m.newID(), name, m.clock.Now())

	if err := m.store.AppendTicket(ctx, ticket, next.NextNumber); err != nil {
		m.mu.Unlock()
		return domain.Ticket{}, &domain.StorageError{Op: "append ticket", Err: err}
	}
	m.state = next

	m.logger.Info().
		Str("ticket_id", ticket.ID).
		Int("number", ticket.Number).
		Msg("ticket created")
	m.unlockAndPublish(ctx, domain.NewTicketEvent(domain.EventTicketCreated, ticket, ticket.CreatedAt))
	return ticket, nil
}

// CallNext serves the oldest waiting ticket, finishing whoever was at the
// counter. With nobody waiting it is a no-op.
func (m *QueueManager) CallNext(ctx context.Context) (CallResult, error) {
	m.mu.Lock()

	next := m.state.Clone()
	called, served, ok := next.Advance()
	if !ok {
		defer m.mu.Unlock()
		return CallResult{State: m.state.Clone(), Called: false}, nil
	}

	servedID := ""
	if served != nil {
		servedID = served.ID
	}
	if err := m.store.AdvanceServing(ctx, servedID, called.ID); err != nil {
		m.mu.Unlock()
		return CallResult{}, &domain.StorageError{Op: "advance serving", Err: err}
	}
	m.state = next

	m.logger.Info().
		Str("ticket_id", called.ID).
		Int("number", called.Number).
		Msg("ticket called")

	now := m.clock.Now()
	events := make([]domain.QueueEvent, 0, 2)
	if served != nil {
		events = append(events, domain.NewTicketEvent(domain.EventTicketServed, *served, now))
	}
	events = append(events, domain.NewTicketEvent(domain.EventTicketCalled, called, now))
	result := CallResult{State: next.Clone(), Called: true}

	m.unlockAndPublish(ctx, events...)
	return result, nil
}

// Reset discards every ticket and restarts numbering at 1.
func (m *QueueManager) Reset(ctx context.Context) (domain.QueueState, error) {
	m.mu.Lock()

	if err := m.store.ResetQueue(ctx); err != nil {
		m.mu.Unlock()
		return domain.QueueState{}, &domain.StorageError{Op: "reset queue", Err: err}
	}
	discarded := len(m.state.Tickets)
	m.state = domain.NewQueueState()
	fresh := m.state.Clone()

	m.logger.Info().Int("discarded", discarded).Msg("queue reset")
	m.unlockAndPublish(ctx, domain.QueueEvent{Type: domain.EventQueueReset, OccurredAt: m.clock.Now()})
	return fresh, nil
}

// unlockAndPublish releases the state lock and delivers events for the
// transition just committed. pubMu is acquired while mu is still held, so
// events leave in commit order while readers and the next mutation proceed.
// Delivery is not cut short by a cancelled request, and a failed publish is
// only logged.
func (m *QueueManager) unlockAndPublish(ctx context.Context, events ...domain.QueueEvent) {
	if m.publisher == nil {
		m.mu.Unlock()
		return
	}
	m.pubMu.Lock()
	m.mu.Unlock()
	defer m.pubMu.Unlock()

	ctx = context.WithoutCancel(ctx)
	for _, event := range events {
		if err := m.publisher.Publish(ctx, event); err != nil {
			m.logger.Warn().
				Err(err).
				Str("event", string(event.Type)).
				Msg("publish queue event")
		}
	}
}
