// Package events publishes verification status transitions.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"

	"kycgate/internal/kyc/ports"
)

// EventType is carried in the event-type record header.
const EventType = "kyc.verification.status_changed"

type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaPublisher writes one record per transition, keyed by record ID so all
// transitions of a record land on the same partition in order.
type KafkaPublisher struct {
	producer producer
	topic    string
	logger   *slog.Logger
}

func NewKafkaPublisher(p producer, topic string, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{producer: p, topic: topic, logger: logger}
}

func (p *KafkaPublisher) PublishStatusChanged(ctx context.Context, event ports.StatusChanged) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.RecordID.String()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event-type", Value: []byte(EventType)},
		},
	}
	if err := p.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce status event: %w", err)
	}
	p.logger.DebugContext(ctx, "status event published",
		"record_id", event.RecordID.String(),
		"from", event.From,
		"to", event.To,
	)
	return nil
}

// Recorder keeps events in memory. Used when no broker is configured and in tests.
type Recorder struct {
	mu     sync.Mutex
	events []ports.StatusChanged
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) PublishStatusChanged(_ context.Context, event ports.StatusChanged) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []ports.StatusChanged {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ports.StatusChanged(nil), r.events...)
}
