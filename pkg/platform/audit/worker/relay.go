// Package worker relays audit outbox rows to Kafka.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"expatdesk/pkg/platform/audit/store/postgres"
)

// Outbox is the relay's view of the outbox table.
type Outbox interface {
	FetchUnpublished(ctx context.Context, limit int) ([]postgres.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Message is one record handed to the producer.
type Message struct {
	Key   []byte
	Value []byte
}

// Producer ships messages to the broker.
type Producer interface {
	Produce(ctx context.Context, msgs []Message) error
}

// KafkaProducer produces synchronously with franz-go.
type KafkaProducer struct {
	client *kgo.Client
	topic  string
}

func NewKafkaProducer(client *kgo.Client, topic string) *KafkaProducer {
	return &KafkaProducer{client: client, topic: topic}
}

func (p *KafkaProducer) Produce(ctx context.Context, msgs []Message) error {
	records := make([]*kgo.Record, len(msgs))
	for i, m := range msgs {
		records[i] = &kgo.Record{Topic: p.topic, Key: m.Key, Value: m.Value}
	}
	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce audit records: %w", err)
	}
	return nil
}

// Relay polls the outbox and publishes batches in creation order. Rows are
// marked only after the broker acknowledged them, so delivery is at least once.
type Relay struct {
	outbox    Outbox
	producer  Producer
	logger    *zap.Logger
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

type Option func(*Relay)

func WithLogger(logger *zap.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func NewRelay(outbox Outbox, producer Producer, opts ...Option) *Relay {
	r := &Relay{
		outbox:    outbox,
		producer:  producer,
		logger:    zap.NewNop(),
		interval:  2 * time.Second,
		batchSize: 100,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run relays until ctx is cancelled. Batch failures are logged and retried
// on the next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := r.RunOnce(ctx)
			if err != nil {
				r.logger.Warn("audit relay batch failed", zap.Error(err))
				continue
			}
			if n > 0 {
				r.logger.Debug("audit relay published batch", zap.Int("count", n))
			}
		}
	}
}

// RunOnce publishes one batch and returns how many rows were relayed.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	entries, err := r.outbox.FetchUnpublished(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	msgs := make([]Message, len(entries))
	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		msgs[i] = Message{Key: []byte(e.Subject), Value: e.Payload}
		ids[i] = e.ID
	}
	if err := r.producer.Produce(ctx, msgs); err != nil {
		return 0, err
	}
	if err := r.outbox.MarkPublished(ctx, ids, r.now()); err != nil {
		return 0, err
	}
	return len(entries), nil
}
