package app

import "github.com/google/uuid"

func newTicketID() string {
	return uuid.NewString()
}
