package client

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type EventPublisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
	Close() error
}

// Publish runs in the request path and must not wait out a full batch.
const publishBatchTimeout = 10 * time.Millisecond

type kafkaPublisherImpl struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) (EventPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	return &kafkaPublisherImpl{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
			BatchTimeout: publishBatchTimeout,
			WriteTimeout: 5 * time.Second,
		},
	}, nil
}

// Publish keys messages by recipient so one user's notifications stay ordered.
func (p *kafkaPublisherImpl) Publish(ctx context.Context, key string, payload []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now().UTC(),
	})
}

func (p *kafkaPublisherImpl) Close() error {
	return p.writer.Close()
}
