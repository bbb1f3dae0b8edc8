package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"recruiting-pipeline/internal/domain"
)

// Channel is the subset of *amqp.Channel used by the publisher and consumer.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	Close() error
}

// Dial opens a connection and a channel on it.
func Dial(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("amqp: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("amqp: open channel: %w", err)
	}
	return conn, ch, nil
}

// Publisher sends enrichment requests to a durable queue on the default exchange.
type Publisher struct {
	ch       Channel
	queue    string
	attempts int
	log      *zap.Logger
	mu       sync.Mutex
}

// NewPublisher declares the request queue and returns a trigger bound to it.
func NewPublisher(ch Channel, queue string, log *zap.Logger) (*Publisher, error) {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("amqp: declare %s: %w", queue, err)
	}
	return &Publisher{ch: ch, queue: queue, attempts: 3, log: log}, nil
}

// Trigger publishes the request. It retries transient publish errors until ctx ends.
func (p *Publisher) Trigger(ctx context.Context, req domain.EnrichmentRequest) error {
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now().UTC()
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("enrichment: encode request: %w", err)
	}

	_, err = retry(ctx, p.attempts, func() (struct{}, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		return struct{}{}, p.ch.Publish("", p.queue, false, false, amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			MessageId:     req.EntityID,
			CorrelationId: req.EntityID,
			Timestamp:     req.RequestedAt,
			Type:          req.EntityType,
			Body:          body,
		})
	})
	if err != nil {
		return fmt.Errorf("enrichment: publish %s: %w", req.EntityID, err)
	}
	p.log.Debug("enrichment request published",
		zap.String("entity_id", req.EntityID),
		zap.String("entity_type", req.EntityType),
		zap.String("queue", p.queue))
	return nil
}

// retry runs fn up to attempts times with a linear backoff.
func retry[T any](ctx context.Context, attempts int, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for i := 0; i < attempts; i++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(time.Duration(200*(i+1)) * time.Millisecond):
		}
	}
	return zero, fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

// LogTrigger is used when no broker is configured. Requests are only logged.
type LogTrigger struct {
	log *zap.Logger
}

func NewLogTrigger(log *zap.Logger) *LogTrigger {
	return &LogTrigger{log: log}
}

func (t *LogTrigger) Trigger(ctx context.Context, req domain.EnrichmentRequest) error {
	t.log.Info("enrichment broker not configured, request dropped",
		zap.String("entity_id", req.EntityID),
		zap.String("artifact_uri", req.ArtifactURI))
	return nil
}
