package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cimillas/walkin-queue/internal/app"
	"github.com/cimillas/walkin-queue/internal/domain"
)

const maxTicketRequestBytes = 4 << 10

// QueueReader serves snapshots for the display and admin pages.
type QueueReader interface {
	State() domain.QueueState
}

// TicketCreator is the minimal interface needed to issue tickets.
type TicketCreator interface {
	CreateTicket(ctx context.Context, name string) (domain.Ticket, error)
}

// QueueCaller is the minimal interface needed to call the next customer.
type QueueCaller interface {
	CallNext(ctx context.Context) (app.CallResult, error)
}

// QueueResetter is the minimal interface needed to reset the queue.
type QueueResetter interface {
	Reset(ctx context.Context) (domain.QueueState, error)
}

// QueueService is everything the router exposes.
type QueueService interface {
	QueueReader
	TicketCreator
	QueueCaller
	QueueResetter
}

// HandleQueueState returns the current queue snapshot.
func HandleQueueState(svc QueueReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, newQueueStateResponse(svc.State()), nil)
	}
}

// HandleCreateTicket issues a ticket for the name in the request body.
func HandleCreateTicket(svc TicketCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createTicketRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTicketRequestBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.Name == nil {
			writeError(w, http.StatusBadRequest, codeNameRequired, domain.ErrNameRequired.Message)
			return
		}

		ticket, err := svc.CreateTicket(r.Context(), *req.Name)
		if err != nil {
			writeQueueError(w, r, "create ticket", err)
			return
		}
		writeData(w, http.StatusCreated, newTicketResponse(ticket), nil)
	}
}

// HandleCallNext calls the next waiting customer. An empty queue is not an
// error; the response carries called=false and the unchanged state.
func HandleCallNext(svc QueueCaller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.CallNext(r.Context())
		if err != nil {
			writeQueueError(w, r, "call next", err)
			return
		}
		called := res.Called
		writeData(w, http.StatusOK, newQueueStateResponse(res.State), &called)
	}
}

// HandleResetQueue discards the queue and restarts numbering.
func HandleResetQueue(svc QueueResetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := svc.Reset(r.Context())
		if err != nil {
			writeQueueError(w, r, "reset queue", err)
			return
		}
		writeData(w, http.StatusOK, newQueueStateResponse(state), nil)
	}
}

type createTicketRequest struct {
	Name *string `json:"name"`
}

type dataResponse struct {
	Success bool  `json:"success"`
	Data    any   `json:"data"`
	Called  *bool `json:"called,omitempty"`
}

type ticketResponse struct {
	ID        string    `json:"id"`
	Number    int       `json:"number"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type queueStateResponse struct {
	Tickets          []ticketResponse `json:"tickets"`
	CurrentlyServing *ticketResponse  `json:"currentlyServing"`
	NextNumber       int              `json:"nextNumber"`
}

func newTicketResponse(t domain.Ticket) ticketResponse {
	return ticketResponse{
		ID:        t.ID,
		Number:    t.Number,
		Name:      t.Name,
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
	}
}

func newQueueStateResponse(s domain.QueueState) queueStateResponse {
	resp := queueStateResponse{
		Tickets:    make([]ticketResponse, 0, len(s.Tickets)),
		NextNumber: s.NextNumber,
	}
	for _, t := range s.Tickets {
		resp.Tickets = append(resp.Tickets, newTicketResponse(t))
	}
	if s.CurrentlyServing != nil {
		serving := newTicketResponse(*s.CurrentlyServing)
		resp.CurrentlyServing = &serving
	}
	return resp
}

func writeData(w http.ResponseWriter, status int, data any, called *bool) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dataResponse{
		Success: true,
		Data:    data,
		Called:  called,
	})
}
