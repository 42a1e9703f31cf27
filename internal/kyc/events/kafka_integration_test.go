//go:build integration

package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"kycgate/internal/kyc/events"
	"kycgate/internal/kyc/models"
	"kycgate/internal/kyc/ports"
	"kycgate/internal/platform/config"
	"kycgate/internal/platform/kafka"
	id "kycgate/pkg/domain"
	"kycgate/pkg/testutil/containers"
)

type KafkaPublisherSuite struct {
	suite.Suite
	broker string
}

func TestKafkaPublisherSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaPublisherSuite))
}

func (s *KafkaPublisherSuite) SetupSuite() {
	s.broker = containers.GetManager().GetRedpanda(s.T()).Broker
}

func (s *KafkaPublisherSuite) TestPublishedEventIsConsumable() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	topic := "kyc-status-" + uuid.NewString()
	client, err := kafka.New(ctx, config.KafkaConfig{
		Brokers:     []string{s.broker},
		StatusTopic: topic,
		Partitions:  1,
		Replication: 1,
	})
	s.Require().NoError(err)
	defer client.Close()

	pub := events.NewKafkaPublisher(client, client.Topic(), nil)
	event := ports.StatusChanged{
		RecordID:   id.NewRecordID(),
		UserID:     id.UserID(uuid.New()),
		From:       models.StatusCredentialIssued,
		To:         models.StatusCompleted,
		OccurredAt: time.Now().UTC(),
	}
	s.Require().NoError(pub.PublishStatusChanged(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	s.Require().Empty(fetches.Errors())
	records := fetches.Records()
	s.Require().Len(records, 1)
	s.Equal(event.RecordID.String(), string(records[0].Key))

	var got ports.StatusChanged
	s.Require().NoError(json.Unmarshal(records[0].Value, &got))
	s.Equal(models.StatusCompleted, got.To)
}
