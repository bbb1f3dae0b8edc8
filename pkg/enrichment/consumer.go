package enrichment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// Handler applies one validated result. Returning ErrInvalidResult (wrapped)
// drops the message, any other error requeues it.
type Handler func(ctx context.Context, result *Result) error

// Consumer reads enrichment results and fans them out to a worker pool.
type Consumer struct {
	ch      Channel
	queue   string
	workers int
	handler Handler
	log     *zap.Logger
}

func NewConsumer(ch Channel, queue string, workers int, handler Handler, log *zap.Logger) *Consumer {
	if workers < 1 {
		workers = 1
	}
	return &Consumer{ch: ch, queue: queue, workers: workers, handler: handler, log: log}
}

// Run blocks until ctx is cancelled or the delivery channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	if _, err := c.ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("amqp: declare %s: %w", c.queue, err)
	}
	if err := c.ch.Qos(c.workers*2, 0, false); err != nil {
		return fmt.Errorf("amqp: qos: %w", err)
	}
	msgs, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("amqp: consume %s: %w", c.queue, err)
	}
	c.log.Info("enrichment result consumer started",
		zap.String("queue", c.queue), zap.Int("workers", c.workers))

	c.Serve(ctx, msgs)
	return nil
}

// Serve processes deliveries with the worker pool until msgs closes or ctx ends.
func (c *Consumer) Serve(ctx context.Context, msgs <-chan amqp.Delivery) {
	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-msgs:
					if !ok {
						return
					}
					c.handle(ctx, id, d)
				}
			}
		}(i)
	}
	wg.Wait()
}

func (c *Consumer) handle(ctx context.Context, worker int, d amqp.Delivery) {
	log := c.log.With(zap.Int("worker", worker), zap.String("message_id", d.MessageId))

	result, err := ParseResult(d.Body)
	if err != nil {
		log.Warn("dropping malformed enrichment result", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	if err := c.handler(ctx, result); err != nil {
		requeue := !errors.Is(err, ErrInvalidResult) && !d.Redelivered
		log.Error("failed to apply enrichment result",
			zap.String("entity_id", result.EntityID),
			zap.Bool("requeue", requeue),
			zap.Error(err))
		_ = d.Nack(false, requeue)
		return
	}

	if err := d.Ack(false); err != nil {
		log.Warn("ack failed", zap.Error(err))
		return
	}
	log.Info("enrichment result applied", zap.String("entity_id", result.EntityID))
}
