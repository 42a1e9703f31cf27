package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"kycgate/internal/platform/config"
)

// Client wraps a franz-go producer bound to the status topic.
type Client struct {
	*kgo.Client
	topic string
}

// New creates the producer client and makes sure the status topic exists.
// Returns nil if no brokers are configured.
func New(ctx context.Context, cfg config.KafkaConfig) (*Client, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}

	cl, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.StatusTopic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	if err := cl.Ping(ctx); err != nil {
		cl.Close()
		return nil, fmt.Errorf("kafka ping failed: %w", err)
	}

	if err := EnsureTopic(ctx, cl, cfg.StatusTopic, cfg.Partitions, cfg.Replication); err != nil {
		cl.Close()
		return nil, err
	}

	return &Client{Client: cl, topic: cfg.StatusTopic}, nil
}

// Topic returns the default produce topic.
func (c *Client) Topic() string {
	return c.topic
}

// Health pings the seed brokers.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx)
}

// EnsureTopic creates the topic if it is missing. An existing topic is not an error.
func EnsureTopic(ctx context.Context, cl *kgo.Client, topic string, partitions int32, replication int16) error {
	adm := kadm.NewClient(cl)
	resp, err := adm.CreateTopics(ctx, partitions, replication, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, t := range resp.Sorted() {
		if t.Err != nil && !errors.Is(t.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", t.Topic, t.Err)
		}
	}
	return nil
}
