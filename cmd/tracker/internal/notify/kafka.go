package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/shubham-shewale/stock-tracker/pkg/models"
)

type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Compile-time check to ensure KafkaPublisher implements Notifier
var _ Notifier = (*KafkaPublisher)(nil)

// KafkaPublisher puts alert events on the alerts topic, keyed by symbol.
type KafkaPublisher struct {
	writer KafkaWriter
}

func NewKafkaPublisher(writer KafkaWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

// NewKafkaWriter configures a synchronous writer; alerts are rare and must not be silently dropped.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

func (k *KafkaPublisher) Notify(ctx context.Context, ev models.AlertEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	if err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.Symbol),
		Value: payload,
		Time:  ev.At,
	}); err != nil {
		return fmt.Errorf("publish alert %s: %w", ev.Symbol, err)
	}
	return nil
}

func (k *KafkaPublisher) Close() error { return k.writer.Close() }
