package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cimillas/walkin-queue/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	errNumberTaken    = errors.New("ticket number already issued")
	errRowRejected    = errors.New("ticket row rejected by schema")
	errStaleTicket    = errors.New("ticket not in expected status")
	errCounterMissing = errors.New("queue counter row missing")
)

// QueueRepository stores the queue in queue_tickets plus the single-row
// queue_counter table. Every write method is one transaction.
type QueueRepository struct {
	pool *pgxpool.Pool
}

func NewQueueRepository(pool *pgxpool.Pool) *QueueRepository {
	return &QueueRepository{pool: pool}
}

func (r *QueueRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *QueueRepository) LoadQueue(ctx context.Context) (domain.QueueState, error) {
	state := domain.NewQueueState()
	var servingID *string

	err := r.WithTx(ctx, func(txCtx context.Context) error {
		const counterQuery = `SELECT next_number, currently_serving_id::text FROM queue_counter WHERE id = 1`
		if err := r.queryRow(txCtx, counterQuery).Scan(&state.NextNumber, &servingID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errCounterMissing
			}
			return fmt.Errorf("load counter: %w", err)
		}

		const ticketsQuery = `
SELECT id::text, number, name, status, created_at
FROM queue_tickets
ORDER BY number ASC`
		rows, err := r.query(txCtx, ticketsQuery)
		if err != nil {
			return fmt.Errorf("list tickets: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var t domain.Ticket
			if err := rows.Scan(&t.ID, &t.Number, &t.Name, &t.Status, &t.CreatedAt); err != nil {
				return fmt.Errorf("scan ticket: %w", err)
			}
			t.CreatedAt = t.CreatedAt.UTC()
			state.Tickets = append(state.Tickets, t)
		}
		if rows.Err() != nil {
			return fmt.Errorf("iterate tickets: %w", rows.Err())
		}
		return nil
	})
	if err != nil {
		return domain.QueueState{}, err
	}

	if servingID != nil {
		for i := range state.Tickets {
			if state.Tickets[i].ID == *servingID {
				serving := state.Tickets[i]
				state.CurrentlyServing = &serving
				break
			}
		}
		if state.CurrentlyServing == nil {
			return domain.QueueState{}, fmt.Errorf("currently serving ticket %s not found", *servingID)
		}
	}
	return state, nil
}

func (r *QueueRepository) AppendTicket(ctx context.Context, ticket domain.Ticket, nextNumber int) error {
	return r.WithTx(ctx, func(txCtx context.Context) error {
		const insert = `
INSERT INTO queue_tickets (id, number, name, status, created_at)
VALUES ($1, $2, $3, $4, $5)`
		_, err := r.exec(txCtx, insert, ticket.ID, ticket.Number, ticket.Name, ticket.Status, ticket.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("append ticket %d: %w", ticket.Number, errNumberTaken)
			}
			if isCheckViolation(err) {
				return fmt.Errorf("append ticket %d: %w", ticket.Number, errRowRejected)
			}
			return fmt.Errorf("append ticket: %w", err)
		}

		const bump = `UPDATE queue_counter SET next_number = $1 WHERE id = 1 AND next_number = $2`
		tag, err := r.exec(txCtx, bump, nextNumber, ticket.Number)
		if err != nil {
			return fmt.Errorf("advance counter: %w", err)
		}
		if tag.RowsAffected() != 1 {
			return fmt.Errorf("advance counter past %d: %w", ticket.Number, errStaleTicket)
		}
		return nil
	})
}

func (r *QueueRepository) AdvanceServing(ctx context.Context, servedID, servingID string) error {
	return r.WithTx(ctx, func(txCtx context.Context) error {
		const transition = `UPDATE queue_tickets SET status = $1 WHERE id = $2 AND status = $3`

		if servedID != "" {
			tag, err := r.exec(txCtx, transition, domain.TicketStatusServed, servedID, domain.TicketStatusServing)
			if err != nil {
				return fmt.Errorf("mark served: %w", err)
			}
			if tag.RowsAffected() != 1 {
				return fmt.Errorf("mark %s served: %w", servedID, errStaleTicket)
			}
		}

		tag, err := r.exec(txCtx, transition, domain.TicketStatusServing, servingID, domain.TicketStatusWaiting)
		if err != nil {
			return fmt.Errorf("mark serving: %w", err)
		}
		if tag.RowsAffected() != 1 {
			return fmt.Errorf("mark %s serving: %w", servingID, errStaleTicket)
		}

		const point = `UPDATE queue_counter SET currently_serving_id = $1 WHERE id = 1`
		if _, err := r.exec(txCtx, point, servingID); err != nil {
			return fmt.Errorf("set currently serving: %w", err)
		}
		return nil
	})
}

func (r *QueueRepository) ResetQueue(ctx context.Context) error {
	return r.WithTx(ctx, func(txCtx context.Context) error {
		const rewind = `UPDATE queue_counter SET next_number = 1, currently_serving_id = NULL WHERE id = 1`
		tag, err := r.exec(txCtx, rewind)
		if err != nil {
			return fmt.Errorf("rewind counter: %w", err)
		}
		if tag.RowsAffected() != 1 {
			return errCounterMissing
		}
		if _, err := r.exec(txCtx, `DELETE FROM queue_tickets`); err != nil {
			return fmt.Errorf("delete tickets: %w", err)
		}
		return nil
	})
}

func (r *QueueRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *QueueRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func (r *QueueRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
