package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"recruiting-pipeline/internal/domain"
)

type fakeChannel struct {
	mu         sync.Mutex
	declared   []string
	published  []amqp.Publishing
	failFirst  int
	deliveries chan amqp.Delivery
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.declared = append(f.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFirst > 0 {
		f.failFirst--
		return errors.New("channel busy")
	}
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	return f.deliveries, nil
}

func (f *fakeChannel) Qos(prefetchCount, prefetchSize int, global bool) error { return nil }
func (f *fakeChannel) Close() error                                         { return nil }

type ackRecorder struct {
	mu     sync.Mutex
	acked  []uint64
	nacked map[uint64]bool
}

func newAckRecorder() *ackRecorder {
	return &ackRecorder{nacked: map[uint64]bool{}}
}

func (a *ackRecorder) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	a.acked = append(a.acked, tag)
	a.mu.Unlock()
	return nil
}

func (a *ackRecorder) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	a.nacked[tag] = requeue
	a.mu.Unlock()
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func TestPublisherTrigger(t *testing.T) {
	ch := &fakeChannel{failFirst: 1}
	p, err := NewPublisher(ch, "enrichment.requests", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"enrichment.requests"}, ch.declared)

	err = p.Trigger(context.Background(), domain.EnrichmentRequest{
		EntityID:    "app-1",
		EntityType:  "application",
		ArtifactURI: "s3://bucket/applications/acc/job/cv.pdf",
		JobID:       "job-1",
	})
	require.NoError(t, err)
	require.Len(t, ch.published, 1)

	msg := ch.published[0]
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, uint8(amqp.Persistent), msg.DeliveryMode)
	assert.Equal(t, "app-1", msg.MessageId)

	var sent domain.EnrichmentRequest
	require.NoError(t, json.Unmarshal(msg.Body, &sent))
	assert.Equal(t, "job-1", sent.JobID)
	assert.False(t, sent.RequestedAt.IsZero())
}

func TestPublisherGivesUpWhenContextEnds(t *testing.T) {
	ch := &fakeChannel{failFirst: 100}
	p, err := NewPublisher(ch, "q", zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = p.Trigger(ctx, domain.EnrichmentRequest{EntityID: "x"})
	assert.Error(t, err)
}

func TestParseResult(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		r, err := ParseResult([]byte(`{"entityId":"app-1","matchScore":87,"recommendation":"Recommended","strengths":["Go"],"analyzedAt":"2026-01-02T03:04:05Z"}`))
		require.NoError(t, err)
		assert.Equal(t, "application", r.EntityType)
		e := r.Enrichment()
		assert.Equal(t, 87, e.MatchScore)
		assert.Equal(t, domain.RecommendationYes, e.Recommendation)
		assert.Equal(t, []string{}, e.Concerns)
	})

	cases := map[string]string{
		"not json":         `{`,
		"missing entity":   `{"matchScore":10,"recommendation":"Consider"}`,
		"score too high":   `{"entityId":"a","matchScore":101,"recommendation":"Consider"}`,
		"fractional score": `{"entityId":"a","matchScore":10.5,"recommendation":"Consider"}`,
		"unknown rec":      `{"entityId":"a","matchScore":10,"recommendation":"Hire now"}`,
		"bad strengths":    `{"entityId":"a","matchScore":10,"recommendation":"Consider","strengths":[1]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseResult([]byte(body))
			assert.ErrorIs(t, err, ErrInvalidResult)
		})
	}
}

func delivery(ack amqp.Acknowledger, tag uint64, body string, redelivered bool) amqp.Delivery {
	return amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  tag,
		MessageId:    fmt.Sprintf("m-%d", tag),
		Body:         []byte(body),
		Redelivered:  redelivered,
	}
}

func TestConsumerServe(t *testing.T) {
	ack := newAckRecorder()
	msgs := make(chan amqp.Delivery, 4)

	var mu sync.Mutex
	applied := map[string]int{}
	handler := func(ctx context.Context, r *Result) error {
		if r.EntityID == "flaky" {
			return errors.New("store unavailable")
		}
		mu.Lock()
		applied[r.EntityID] = r.MatchScore
		mu.Unlock()
		return nil
	}

	c := NewConsumer(&fakeChannel{}, "enrichment.results", 2, handler, zap.NewNop())

	msgs <- delivery(ack, 1, `{"entityId":"app-1","matchScore":70,"recommendation":"Consider"}`, false)
	msgs <- delivery(ack, 2, `garbage`, false)
	msgs <- delivery(ack, 3, `{"entityId":"flaky","matchScore":70,"recommendation":"Consider"}`, false)
	msgs <- delivery(ack, 4, `{"entityId":"flaky","matchScore":70,"recommendation":"Consider"}`, true)
	close(msgs)

	c.Serve(context.Background(), msgs)

	assert.Equal(t, map[string]int{"app-1": 70}, applied)
	assert.Equal(t, []uint64{1}, ack.acked)
	assert.Equal(t, map[uint64]bool{2: false, 3: true, 4: false}, ack.nacked)
}

func TestConsumerRunDeclaresQueue(t *testing.T) {
	ch := &fakeChannel{deliveries: make(chan amqp.Delivery)}
	close(ch.deliveries)
	c := NewConsumer(ch, "enrichment.results", 1, func(context.Context, *Result) error { return nil }, zap.NewNop())

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, []string{"enrichment.results"}, ch.declared)
}
