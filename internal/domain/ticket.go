package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MaxNameLength is the longest display name, in characters, a ticket accepts.
const MaxNameLength = 50

// TimestampPrecision is the resolution ticket timestamps are kept at. It
// matches Postgres timestamptz, so a restored ticket reads back unchanged.
const TimestampPrecision = time.Microsecond

type TicketStatus string

const (
	TicketStatusWaiting TicketStatus = "waiting"
	TicketStatusServing TicketStatus = "serving"
	TicketStatusServed  TicketStatus = "served"
)

// Valid reports whether s is one of the known ticket statuses.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusWaiting, TicketStatusServing, TicketStatusServed:
		return true
	}
	return false
}

// Ticket is a single customer's place in the queue.
type Ticket struct {
	ID        string
	Number    int
	Name      string
	Status    TicketStatus
	CreatedAt time.Time
}

// NormalizeName trims surrounding whitespace and checks the result against
// the display name bounds. The trimmed name is what gets stored.
func NormalizeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", ErrNameRequired
	}
	if utf8.RuneCountInString(trimmed) > MaxNameLength {
		return "", ErrNameTooLong
	}
	return trimmed, nil
}
