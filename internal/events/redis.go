// Package events publishes committed queue transitions so displays and other
// consumers can follow the queue without polling.
package events

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cimillas/walkin-queue/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultStream = "queue.events"
	DefaultMaxLen = 10000

	defaultPublishTimeout = 2 * time.Second
)

// RedisPublisher appends queue events to a capped Redis stream.
type RedisPublisher struct {
	client  redis.Cmdable
	stream  string
	maxLen  int64
	timeout time.Duration
}

type RedisOption func(*RedisPublisher)

func WithStream(name string) RedisOption {
	return func(p *RedisPublisher) {
		if name != "" {
			p.stream = name
		}
	}
}

// WithMaxLen caps the stream at roughly n entries.
func WithMaxLen(n int64) RedisOption {
	return func(p *RedisPublisher) {
		if n > 0 {
			p.maxLen = n
		}
	}
}

func WithPublishTimeout(d time.Duration) RedisOption {
	return func(p *RedisPublisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func NewRedisPublisher(client redis.Cmdable, opts ...RedisOption) *RedisPublisher {
	p := &RedisPublisher{
		client:  client,
		stream:  DefaultStream,
		maxLen:  DefaultMaxLen,
		timeout: defaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *RedisPublisher) Publish(ctx context.Context, event domain.QueueEvent) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.client.XAdd(ctx, p.xaddArgs(event)).Err(); err != nil {
		return fmt.Errorf("xadd %s %s: %w", p.stream, event.Type, err)
	}
	return nil
}

func (p *RedisPublisher) xaddArgs(event domain.QueueEvent) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: eventValues(event),
	}
}

// eventValues flattens an event into ordered stream fields.
func eventValues(event domain.QueueEvent) []interface{} {
	values := []interface{}{
		"event", string(event.Type),
		"occurred_at", event.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
	if event.TicketID != "" {
		values = append(values,
			"ticket_id", event.TicketID,
			"ticket_number", strconv.Itoa(event.TicketNumber),
			"ticket_name", event.TicketName,
		)
	}
	return values
}

// Connect parses a redis:// or rediss:// URL and checks the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
