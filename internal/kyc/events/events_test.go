package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"kycgate/internal/kyc/models"
	"kycgate/internal/kyc/ports"
	id "kycgate/pkg/domain"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	var out kgo.ProduceResults
	for _, r := range rs {
		f.records = append(f.records, r)
		out = append(out, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return out
}

func statusEvent() ports.StatusChanged {
	return ports.StatusChanged{
		RecordID:          id.NewRecordID(),
		UserID:            id.UserID(uuid.New()),
		From:              models.StatusAIProcessing,
		To:                models.StatusRejected,
		OccurredAt:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		RejectionCategory: models.RejectionProcessingTimeout,
	}
}

func TestKafkaPublisher_KeysByRecord(t *testing.T) {
	p := &fakeProducer{}
	pub := NewKafkaPublisher(p, "kyc.verification.status", nil)
	event := statusEvent()

	require.NoError(t, pub.PublishStatusChanged(context.Background(), event))

	require.Len(t, p.records, 1)
	rec := p.records[0]
	assert.Equal(t, "kyc.verification.status", rec.Topic)
	assert.Equal(t, event.RecordID.String(), string(rec.Key))
	assert.Equal(t, EventType, string(rec.Headers[0].Value))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Value, &body))
	assert.Equal(t, "rejected", body["to"])
	assert.Equal(t, "processing_timeout", body["rejection_category"])
}

func TestKafkaPublisher_PropagatesProduceError(t *testing.T) {
	p := &fakeProducer{err: errors.New("broker unavailable")}
	pub := NewKafkaPublisher(p, "t", nil)

	err := pub.PublishStatusChanged(context.Background(), statusEvent())
	assert.ErrorContains(t, err, "broker unavailable")
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	require.NoError(t, r.PublishStatusChanged(context.Background(), statusEvent()))
	events := r.Events()
	require.Len(t, events, 1)
	events[0].To = models.StatusCompleted
	assert.Equal(t, models.StatusRejected, r.Events()[0].To)
}
