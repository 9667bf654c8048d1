// Package kafka publishes record changes to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/modoterra/lifedash/pkg/events"
)

// DefaultTopic receives change events when none is configured.
const DefaultTopic = "lifedash.records"

// Publisher writes each change as a JSON message keyed by record ID.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a publisher. No connection is made until the first
// message is written.
func NewPublisher(brokers []string, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (p *Publisher) Publish(ctx context.Context, c events.Change) error {
	msg, err := Message(c)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s %s: %w", c.Kind, c.Op, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Message encodes a change. Messages for the same record share a key so they
// land on one partition in order.
func Message(c events.Change) (kafka.Message, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(c.ID),
		Value: data,
		Time:  c.At,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(c.Kind)},
			{Key: "op", Value: []byte(c.Op)},
		},
	}, nil
}

var _ events.Publisher = (*Publisher)(nil)
