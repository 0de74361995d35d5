package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher appends events to a topic keyed by market id, so a
// market's events stay ordered within one partition.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaWriter builds a writer for a comma separated broker list.
func NewKafkaWriter(brokers, topic string) *kafka.Writer {
	if topic == "" {
		topic = Channel
	}
	var addrs []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			addrs = append(addrs, b)
		}
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(addrs...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaPublisher(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(e.MarketID.String()),
		Value: payload,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish %s: %w", e.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
