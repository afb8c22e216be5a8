package kafka

import (
	"context"
	"encoding/json"

	"github.com/fincore/ledger-engine/internal/interfaces"
	"github.com/segmentio/kafka-go"
)

// Publisher emits engine events to kafka. Publishing is best-effort
// observability fan-out; the engine's durability point is the ledger, not
// the broker.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (p *Publisher) Publish(topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(
		context.Background(),
		kafka.Message{
			Topic: topic,
			Value: data,
		},
	)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ interfaces.EventPublisher = (*Publisher)(nil)
